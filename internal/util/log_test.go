package util_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github/chapool/ledger-signer/internal/util"
)

func TestLogFromContext(t *testing.T) {
	assert.Same(t, &log.Logger, util.LogFromContext(context.Background()))

	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("component", "test").Logger()
	ctx := util.WithLogger(context.Background(), logger)

	util.LogFromContext(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

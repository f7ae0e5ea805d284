package pkg_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/traintrack/pkg"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestCombinedWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	cw := pkg.NewCombinedWriter(&buf1, &buf2)

	n, err := cw.Write([]byte("test log line"))
	require.NoError(t, err)
	assert.Equal(t, 2*len("test log line"), n)
	assert.Equal(t, "test log line", buf1.String())
	assert.Equal(t, "test log line", buf2.String())
}

func TestCombinedWriter_oneFails(t *testing.T) {
	var buf bytes.Buffer
	cw := pkg.NewCombinedWriter(failingWriter{}, &buf)

	n, err := cw.Write([]byte("ohlala"))
	assert.Error(t, err)
	assert.Equal(t, len("ohlala"), n)
	assert.Equal(t, "ohlala", buf.String())
}

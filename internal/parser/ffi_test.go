package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tatsuokamon/scrape-serv/internal/parser"
)

func TestFindMetaReturnsPayload(t *testing.T) {
	out, err := parser.FindMeta("<html><body>hi</body></html>")
	require.NoError(t, err)
	require.Contains(t, out, `"kind":"meta"`)
}

func TestFindDetailAndUpdateTagDiffer(t *testing.T) {
	detail, err := parser.FindDetail("<html></html>")
	require.NoError(t, err)
	require.Contains(t, detail, `"kind":"detail"`)

	tag, err := parser.UpdateTag("<html></html>")
	require.NoError(t, err)
	require.Contains(t, tag, `"kind":"tag"`)
}

func TestMaxIdxFinderFormatsDecimal(t *testing.T) {
	out, err := parser.MaxIdxFinder(strings.Repeat("a", 5))
	require.NoError(t, err)
	require.Equal(t, "5", out)
}

func TestNulByteIsRejected(t *testing.T) {
	_, err := parser.FindMeta("bad\x00html")
	require.ErrorIs(t, err, parser.ErrNulByte)

	_, err = parser.MaxIdxFinder("bad\x00html")
	require.ErrorIs(t, err, parser.ErrNulByte)
}

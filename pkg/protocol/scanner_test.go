package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindFrames(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		expect []string
	}{
		{
			name: "none",
			text: "hello world",
		},
		{
			name:   "single",
			text:   "KBST;0;GET;1;1;;TSBK",
			expect: []string{"KBST;0;GET;1;1;;TSBK"},
		},
		{
			name:   "noise around",
			text:   "xx KBST;0;GET;1;1;;TSBK yy",
			expect: []string{"KBST;0;GET;1;1;;TSBK"},
		},
		{
			name:   "two in order",
			text:   "KBST;0;GET;1;1;;TSBKKBST;0;GET;2;2;;TSBK",
			expect: []string{"KBST;0;GET;1;1;;TSBK", "KBST;0;GET;2;2;;TSBK"},
		},
		{
			name:   "stale header",
			text:   "KBST;0;GE KBST;0;GET;3;0;;TSBK",
			expect: []string{"KBST;0;GET;3;0;;TSBK"},
		},
		{
			name: "footer without header",
			text: "garbage;TSBK",
		},
		{
			name: "header without footer",
			text: "KBST;0;GET;1;1;",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, FindFrames(tc.text))
		})
	}
}

func TestLineAssembler(t *testing.T) {
	var a LineAssembler
	var lines []string
	for _, b := range []byte("abc\r\n\ndef\nghi") {
		if line, ok := a.Feed(b); ok {
			lines = append(lines, line)
		}
	}
	require.Equal(t, []string{"abc", "def"}, lines)
	line, ok := a.Feed('\r')
	require.True(t, ok)
	require.Equal(t, "ghi", line)
}

func TestLineAssemblerOverflow(t *testing.T) {
	a := LineAssembler{MaxLine: 4}
	for _, b := range []byte("abcdefgh") {
		_, ok := a.Feed(b)
		require.False(t, ok)
	}
	_, ok := a.Feed('\n')
	require.False(t, ok)
	for _, b := range []byte("ab") {
		a.Feed(b)
	}
	line, ok := a.Feed('\n')
	require.True(t, ok)
	require.Equal(t, "ab", line)
}

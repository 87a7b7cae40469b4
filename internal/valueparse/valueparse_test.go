package valueparse

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/poundproxy/poundcfg/internal/intern"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/stretchr/testify/require"
)

func ctxOn(t *testing.T, content string) *section.Context {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cfg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	l := lexer.New(intern.New())
	require.NoError(t, l.OpenRoot(path))
	return &section.Context{Lex: l}
}

func TestAssignBoolAcceptsLiterals(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"yes", true}, {"1", true}, {"true", true}, {"on", true},
		{"no", false}, {"0", false}, {"false", false}, {"off", false},
	} {
		ctx := ctxOn(t, tc.in+"\n")
		var b bool
		res := AssignBool(&b)(ctx, nil)
		require.Equal(t, section.OK, res)
		require.Equal(t, tc.want, b)
	}
}

func TestAssignBoolRejectsGarbage(t *testing.T) {
	ctx := ctxOn(t, "maybe\n")
	var b bool
	res := AssignBool(&b)(ctx, nil)
	require.Equal(t, section.Fail, res)
	require.Contains(t, ctx.Err.Error(), "not a boolean value")
}

func TestAssignIntRangeBoundaries(t *testing.T) {
	ctx := ctxOn(t, "9\n")
	var n int
	require.Equal(t, section.OK, AssignIntRange(&n, 0, 9)(ctx, nil))
	require.Equal(t, 9, n)

	ctx = ctxOn(t, "10\n")
	require.Equal(t, section.Fail, AssignIntRange(&n, 0, 9)(ctx, nil))
}

func TestAssignAddressFallsBackToUnixPath(t *testing.T) {
	ctx := ctxOn(t, "/tmp/pound.sock\n")
	var addr Address
	res := AssignAddress(&addr, false)(ctx, nil)
	require.Equal(t, section.OK, res)
	require.Equal(t, AFUnix, addr.Family)
	require.Equal(t, "/tmp/pound.sock", addr.UnixPath)
}

func TestAssignAddressRejectsOverlongUnixPath(t *testing.T) {
	long := "/tmp/"
	for len(long) <= UnixPathMax {
		long += "x"
	}
	ctx := ctxOn(t, long+"\n")
	var addr Address
	res := AssignAddress(&addr, false)(ctx, nil)
	require.Equal(t, section.Fail, res)
}

func TestAssignAddressRejectsDuplicate(t *testing.T) {
	ctx := ctxOn(t, "10.0.0.1\n")
	addr := Address{HasAddress: true, Family: AFInet}
	res := AssignAddress(&addr, false)(ctx, nil)
	require.Equal(t, section.Fail, res)
	require.Contains(t, ctx.Err.Error(), "duplicate Address statement")
}

func TestAssignPortRequiresAddressFirst(t *testing.T) {
	ctx := ctxOn(t, "8080\n")
	addr := Address{}
	res := AssignPort(&addr, false)(ctx, nil)
	require.Equal(t, section.Fail, res)
	require.Contains(t, ctx.Err.Error(), "must precede")
}

func TestAssignPortNumeric(t *testing.T) {
	ctx := ctxOn(t, "8080\n")
	addr := Address{HasAddress: true, Family: AFInet, IP: nil}
	res := AssignPort(&addr, false)(ctx, nil)
	require.Equal(t, section.OK, res)
	require.EqualValues(t, 8080, addr.Port)
	require.True(t, addr.HasPort)
}

func TestAssignProtocolDisableAccumulatesDownward(t *testing.T) {
	ctx := ctxOn(t, "TLSv1_1\n")
	var mask uint
	res := AssignProtocolDisable(&mask)(ctx, nil)
	require.Equal(t, section.OK, res)
	require.Equal(t, DisableSSLv2|DisableSSLv3|DisableTLSv1|DisableTLSv1_1, mask)
}

func TestAssignRegexReportsInvalidPattern(t *testing.T) {
	ctx := ctxOn(t, `"("`+"\n")
	var dst *regexp.Regexp
	res := AssignRegex(&dst, true)(ctx, nil)
	require.Equal(t, section.Fail, res)
	require.Contains(t, ctx.Err.Error(), "invalid regular expression")
}

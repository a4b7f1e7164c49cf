package npmrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBytesRoundTrip(t *testing.T) {
	testCases := map[string]string{
		"empty":                 "",
		"single newline":        "\n",
		"no trailing newline":   "registry=https://example.com/npm/\nalways-auth=true",
		"trailing newline":      "registry=https://example.com/npm/\nalways-auth=true\n",
		"crlf":                  "registry=https://example.com/npm/\r\nalways-auth=true\r\n",
		"blank lines preserved": "\n\nregistry=https://example.com/npm/\n\n",
		"byte order mark":       "\uFEFFregistry=https://example.com/npm/\r\n",
		"byte order mark only":  "\uFEFF",
	}
	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			f := ParseBytes("/work/.npmrc", []byte(content))
			require.False(t, f.Changed())
			require.Equal(t, content, string(f.Bytes()))
		})
	}
}

func TestParseBytesByteOrderMark(t *testing.T) {
	f := ParseBytes("/work/.npmrc", []byte("\uFEFFregistry=https://example.com/npm/\n"))
	require.Equal(t, LineKindDeclaration, f.Lines[0].Kind)
	require.Equal(t, "https://example.com/npm/", f.Directives()[0].URL)
}

func TestDirectives(t *testing.T) {
	f := ParseBytes("/work/.npmrc", []byte(
		"# comment registry=https://ignored.example.com/\n"+
			"registry=https://feed.example.com/npm\n"+
			"//feed.example.com/npm/:_authToken=registry=old\n"+
			"@myorg:registry=https://other.example.com/npm/\n"+
			"always-auth=true\n",
	))
	require.Equal(
		t,
		[]Directive{
			{URL: "https://feed.example.com/npm/", Line: 1},
			{URL: "https://other.example.com/npm/", Scope: "@myorg", Line: 3},
		},
		f.Directives(),
	)
}

func TestScrub(t *testing.T) {
	testCases := []struct {
		name       string
		content    string
		nerf       string
		keep       []string
		assertions func(*testing.T, *File, int)
	}{
		{
			name:    "nothing to scrub",
			content: "registry=https://feed.example.com/npm/\n",
			nerf:    "//feed.example.com/npm/",
			assertions: func(t *testing.T, f *File, scrubbed int) {
				require.Zero(t, scrubbed)
				require.False(t, f.Changed())
			},
		},
		{
			name: "stale credentials are blanked in place",
			content: "registry=https://feed.example.com/npm/\n" +
				"//feed.example.com/npm/:_authToken=stale\n" +
				"//FEED.example.com/npm/:always-auth=true\n" +
				"always-auth=true\n",
			nerf: "//feed.example.com/npm/",
			assertions: func(t *testing.T, f *File, scrubbed int) {
				require.Equal(t, 2, scrubbed)
				require.True(t, f.Changed())
				require.Equal(
					t,
					"registry=https://feed.example.com/npm/\n\n\nalways-auth=true\n",
					string(f.Bytes()),
				)
			},
		},
		{
			name: "declarations and other registries are never blanked",
			content: "@a:registry=https://feed.example.com/npm/\n" +
				"//feed.example.com/npmother/:_authToken=keep\n" +
				"//other.example.com/npm/:_authToken=keep\n",
			nerf: "//feed.example.com/npm/",
			assertions: func(t *testing.T, f *File, scrubbed int) {
				require.Zero(t, scrubbed)
				require.Len(t, f.Lines, 3)
			},
		},
		{
			name:    "registries below the matched one are scrubbed",
			content: "//feed.example.com/npm/sub/:_authToken=stale\n",
			nerf:    "//feed.example.com/npm/",
			assertions: func(t *testing.T, f *File, scrubbed int) {
				require.Equal(t, 1, scrubbed)
			},
		},
		{
			name: "keys without a trailing slash or with a scheme are scrubbed",
			content: "registry=https://feed.example.com/npm/\n" +
				"//feed.example.com/npm:_authToken=stale\n" +
				"https://feed.example.com/npm/:_password=stale\n" +
				"//feed.example.com/npm/:_authToken=registry=stale\n",
			nerf: "//feed.example.com/npm/",
			assertions: func(t *testing.T, f *File, scrubbed int) {
				require.Equal(t, 3, scrubbed)
				require.Equal(
					t,
					"registry=https://feed.example.com/npm/\n\n\n\n",
					string(f.Bytes()),
				)
			},
		},
		{
			name: "lines about to be injected are kept",
			content: "//feed.example.com/npm/:_authToken=ABC\n" +
				"//feed.example.com/npm/:_authToken=OLD\n",
			nerf: "//feed.example.com/npm/",
			keep: []string{"//feed.example.com/npm/:_authToken=ABC"},
			assertions: func(t *testing.T, f *File, scrubbed int) {
				require.Equal(t, 1, scrubbed)
				require.Equal(t, "//feed.example.com/npm/:_authToken=ABC\n\n", string(f.Bytes()))
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			f := ParseBytes("/work/.npmrc", []byte(testCase.content))
			scrubbed := f.Scrub(testCase.nerf, testCase.keep...)
			testCase.assertions(t, f, scrubbed)
		})
	}
}

func TestAppend(t *testing.T) {
	t.Run("appends after content without trailing newline", func(t *testing.T) {
		f := ParseBytes("/work/.npmrc", []byte("registry=https://feed.example.com/npm/"))
		f.Append("//feed.example.com/npm/:_authToken=ABC")
		require.True(t, f.Changed())
		require.Equal(
			t,
			"registry=https://feed.example.com/npm/\n//feed.example.com/npm/:_authToken=ABC\n",
			string(f.Bytes()),
		)
	})

	t.Run("multi-line auth is split and keeps crlf", func(t *testing.T) {
		f := ParseBytes("/work/.npmrc", []byte("registry=https://feed.example.com/npm/\r\n"))
		f.Append("//feed.example.com/npm/:username=u\n//feed.example.com/npm/:_password=cA==\n")
		require.Len(t, f.Lines, 3)
		require.Equal(t, LineKindCredential, f.Lines[2].Kind)
		require.Equal(
			t,
			"registry=https://feed.example.com/npm/\r\n"+
				"//feed.example.com/npm/:username=u\r\n"+
				"//feed.example.com/npm/:_password=cA==\r\n",
			string(f.Bytes()),
		)
		require.True(t, f.Contains(" //feed.example.com/npm/:username=u "))
	})

	t.Run("appending nothing changes nothing", func(t *testing.T) {
		f := ParseBytes("/work/.npmrc", []byte("a=b"))
		f.Append("", "\n")
		require.False(t, f.Changed())
		require.Equal(t, "a=b", string(f.Bytes()))
	})
}

func TestParseAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".npmrc")
	require.NoError(t, os.WriteFile(path, []byte("registry=https://feed.example.com/npm/\n"), 0o644))

	f, err := Parse(path)
	require.NoError(t, err)
	f.Append("//feed.example.com/npm/:_authToken=ABC")
	require.NoError(t, f.Write())
	require.False(t, f.Changed())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(
		t,
		"registry=https://feed.example.com/npm/\n//feed.example.com/npm/:_authToken=ABC\n",
		string(content),
	)

	_, err = Parse(filepath.Join(t.TempDir(), "missing", ".npmrc"))
	require.ErrorContains(t, err, "error reading")
}

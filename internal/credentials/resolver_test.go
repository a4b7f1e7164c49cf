package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akuity/npmauth/internal/npmrc"
)

type mockExplicitResolver struct {
	ResolveFn func(context.Context, []string) ([]Source, error)
}

func (m *mockExplicitResolver) Resolve(ctx context.Context, ids []string) ([]Source, error) {
	return m.ResolveFn(ctx, ids)
}

type mockPackagingLocator struct {
	PackagingURIsFn func(context.Context) ([]string, error)
}

func (m *mockPackagingLocator) PackagingURIs(ctx context.Context) ([]string, error) {
	return m.PackagingURIsFn(ctx)
}

type mockFederatedResolver struct {
	ResolveFn func(context.Context, string, string) (Source, error)
}

func (m *mockFederatedResolver) Resolve(
	ctx context.Context,
	feedURL string,
	connection string,
) (Source, error) {
	return m.ResolveFn(ctx, feedURL, connection)
}

func TestSelectMode(t *testing.T) {
	testCases := []struct {
		name       string
		feedURL    string
		connection string
		assertions func(*testing.T, Mode, error)
	}{
		{
			name: "neither",
			assertions: func(t *testing.T, mode Mode, err error) {
				require.NoError(t, err)
				require.Equal(t, ModeStandard, mode)
			},
		},
		{
			name:       "both",
			feedURL:    "https://feed.example.com/npm/",
			connection: "wif",
			assertions: func(t *testing.T, mode Mode, err error) {
				require.NoError(t, err)
				require.Equal(t, ModeFederated, mode)
				require.Equal(t, "Federated", mode.String())
			},
		},
		{
			name:    "url only",
			feedURL: "https://feed.example.com/npm/",
			assertions: func(t *testing.T, _ Mode, err error) {
				require.ErrorIs(t, err, ErrMissingFeedURLOrServiceConnection)
			},
		},
		{
			name:       "connection only",
			connection: "wif",
			assertions: func(t *testing.T, _ Mode, err error) {
				require.ErrorIs(t, err, ErrMissingFeedURLOrServiceConnection)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			mode, err := SelectMode(testCase.feedURL, testCase.connection)
			testCase.assertions(t, mode, err)
		})
	}
}

func TestResolverFederated(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := NewResolver(nil, nil, &mockFederatedResolver{
			ResolveFn: func(_ context.Context, feedURL, connection string) (Source, error) {
				require.Equal(t, "https://feed.example.com/npm/", feedURL)
				require.Equal(t, "wif", connection)
				return TokenSource(feedURL, "FRESH", OriginExplicit)
			},
		}, "")
		src, err := r.Federated(context.Background(), "https://feed.example.com/npm", "wif")
		require.NoError(t, err)
		require.Equal(t, OriginFederated, src.Origin)
		require.Equal(t, "//feed.example.com/npm/:_authToken=FRESH", src.AuthLine)
	})

	t.Run("error keeps the cause", func(t *testing.T) {
		cause := errors.New("no tenant")
		r := NewResolver(nil, nil, &mockFederatedResolver{
			ResolveFn: func(context.Context, string, string) (Source, error) {
				return Source{}, cause
			},
		}, "")
		_, err := r.Federated(context.Background(), "https://feed.example.com/npm", "wif")
		require.ErrorIs(t, err, cause)
		require.ErrorContains(t, err, "using service connection wif")
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewResolver(nil, nil, nil, "").
			Federated(context.Background(), "https://feed.example.com/npm", "wif")
		require.ErrorContains(t, err, "not configured")
	})
}

func TestResolverStandard(t *testing.T) {
	directives := []npmrc.Directive{
		{URL: "https://pkgs.dev.azure.com/org/_packaging/feed/npm/registry/"},
		{URL: "https://registry.npmjs.org/", Scope: "@public"},
		{URL: "https://org.pkgs.visualstudio.com/_packaging/other/npm/registry/", Scope: "@org"},
		{URL: "https://PKGS.dev.azure.com/org/_packaging/feed/npm/registry", Scope: "@dup"},
		{URL: "https://pkgs.dev.azure.com/other/_packaging/feed/npm/registry/", Scope: "@other"},
		{URL: "https://pkgs.dev.azure.com/organization/_packaging/feed/npm/registry/", Scope: "@prefix"},
	}
	locator := &mockPackagingLocator{
		PackagingURIsFn: func(context.Context) ([]string, error) {
			return []string{
				"https://pkgs.dev.azure.com/org/",
				"https://org.pkgs.visualstudio.com/",
			}, nil
		},
	}

	testCases := []struct {
		name       string
		explicit   ExplicitResolver
		locator    PackagingLocator
		ids        []string
		assertions func(*testing.T, Pools, error)
	}{
		{
			name:    "discovered sources only for the organization's feeds",
			locator: locator,
			assertions: func(t *testing.T, pools Pools, err error) {
				require.NoError(t, err)
				require.Empty(t, pools.Explicit)
				require.Len(t, pools.Discovered, 2)
				require.Equal(
					t,
					"//pkgs.dev.azure.com/org/_packaging/feed/npm/registry/:_authToken=JOB",
					pools.Discovered[0].AuthLine,
				)
				require.Equal(
					t,
					"//org.pkgs.visualstudio.com/_packaging/other/npm/registry/:_authToken=JOB",
					pools.Discovered[1].AuthLine,
				)
				for _, src := range pools.Discovered {
					require.Equal(t, OriginDiscovered, src.Origin)
				}
			},
		},
		{
			name: "explicit sources",
			explicit: &mockExplicitResolver{
				ResolveFn: func(_ context.Context, ids []string) ([]Source, error) {
					require.Equal(t, []string{"ep1"}, ids)
					return []Source{{URL: "https://registry.npmjs.org/", AuthLine: "x"}}, nil
				},
			},
			locator: locator,
			ids:     []string{"ep1"},
			assertions: func(t *testing.T, pools Pools, err error) {
				require.NoError(t, err)
				require.Len(t, pools.Explicit, 1)
				require.Equal(t, OriginExplicit, pools.Explicit[0].Origin)
				src, ok := pools.Match("https://registry.npmjs.org")
				require.True(t, ok)
				require.Equal(t, "x", src.AuthLine)
			},
		},
		{
			name: "explicit failure",
			explicit: &mockExplicitResolver{
				ResolveFn: func(context.Context, []string) ([]Source, error) {
					return nil, errors.New("boom")
				},
			},
			locator: locator,
			ids:     []string{"ep1"},
			assertions: func(t *testing.T, _ Pools, err error) {
				require.ErrorContains(t, err, "error resolving service connections: boom")
			},
		},
		{
			name: "discovery failure is fatal",
			locator: &mockPackagingLocator{
				PackagingURIsFn: func(context.Context) ([]string, error) {
					return nil, errors.New("unreachable")
				},
			},
			assertions: func(t *testing.T, _ Pools, err error) {
				require.ErrorContains(t, err, "error getting packaging URIs: unreachable")
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			r := NewResolver(testCase.explicit, testCase.locator, nil, "JOB")
			pools, err := r.Standard(context.Background(), testCase.ids, directives)
			testCase.assertions(t, pools, err)
		})
	}
}

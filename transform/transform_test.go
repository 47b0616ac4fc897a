//go:build unit

package transform_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/hugolhafner/logstream/record"
	"github.com/hugolhafner/logstream/transform"
	"github.com/stretchr/testify/require"
)

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.87 Safari/537.36"
	safariUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_1) AppleWebKit/602.2.14 (KHTML, like Gecko) Version/10.0.1 Safari/602.2.14"
	firefoxUA = "Mozilla/5.0 (Windows NT 10.0; WOW64; rv:50.0) Gecko/20100101 Firefox/50.0"
	operaUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.87 Safari/537.36 OPR/42.0.2393.94"
	ieUA      = "Mozilla/5.0 (Windows NT 6.1; WOW64; Trident/7.0; rv:11.0) like Gecko"
)

func TestCategorizeUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ua   string
		want transform.Category
	}{
		{operaUA, transform.CategoryOpera},
		{chromeUA, transform.CategoryChrome},
		{safariUA, transform.CategorySafari},
		{firefoxUA, transform.CategoryFirefox},
		{ieUA, transform.CategoryIE},
		{"MyBrowser", transform.CategoryOther},
		{"", transform.CategoryOther},
		{"chrome", transform.CategoryOther},
		{"Safari Chrome", transform.CategoryChrome},
	}

	for _, tt := range tests {
		t.Run(
			fmt.Sprintf("%s/%.20s", tt.want, tt.ua), func(t *testing.T) {
				t.Parallel()
				require.Equal(t, tt.want, transform.CategorizeUserAgent(tt.ua))
			},
		)
	}
}

func TestCategorizeUserAgent_IsTotal(t *testing.T) {
	t.Parallel()
	inputs := []string{"", " ", "OPR", "\x00\xff", "Trident Firefox", "Firefox Safari"}

	for _, in := range inputs {
		got := transform.CategorizeUserAgent(in)
		require.Contains(t, transform.Categories, got)
	}
	require.Equal(t, transform.CategorySafari, transform.CategorizeUserAgent("Firefox Safari"))
}

func TestAnonymizeAddress(t *testing.T) {
	t.Parallel()

	a := transform.AnonymizeAddress("203.0.113.101")
	require.Equal(t, "ei7clbN5IL38KEugcKKCPQ==", a)
	require.Equal(t, a, transform.AnonymizeAddress("203.0.113.101"))
	require.Len(t, transform.AnonymizeAddress("10.0.0.1"), 24)
	require.NotEqual(t, a, transform.AnonymizeAddress("10.0.0.1"))
}

func TestAnonymizeAddress_MostlyDistinct(t *testing.T) {
	t.Parallel()
	seen := make(map[string]struct{}, 1024)
	for i := 0; i < 1024; i++ {
		seen[transform.AnonymizeAddress(fmt.Sprintf("10.0.%d.%d", i/256, i%256))] = struct{}{}
	}
	require.Len(t, seen, 1024)
}

func TestNewAddressAnonymizer_BLAKE2b(t *testing.T) {
	t.Parallel()

	alg, err := transform.ParseHashAlgorithm("blake2b")
	require.NoError(t, err)

	anon := transform.NewAddressAnonymizer(alg)
	require.Equal(t, "fzASdNbimxBZ7hCF3HIZVSkHraheq8EW5DgvhEPA9rQ=", anon("203.0.113.101"))

	_, err = transform.ParseHashAlgorithm("sha0")
	require.Error(t, err)
}

func TestTransformer_Apply(t *testing.T) {
	t.Parallel()
	line := `203.0.113.101 - - [10/Jan/2017:08:00:00 +0000] "GET /index.html HTTP/1.0" 200 123 "http://example.com" "MyBrowser"`
	in, err := record.Parse(line)
	require.NoError(t, err)

	out, err := transform.NewTransformer().Apply(in)
	require.NoError(t, err)

	require.Equal(t, "ei7clbN5IL38KEugcKKCPQ==", out.ClientAddress())
	require.Equal(t, "OTHER", out.UserAgent())
	require.Equal(t, "GET", out.Method())
	require.Equal(t, "/index.html", out.Resource())
	require.Equal(t, 200, out.Status())
	require.Equal(t, int64(123), out.Bytes())

	// source record is unchanged
	require.Equal(t, "203.0.113.101", in.ClientAddress())
	require.Equal(t, "MyBrowser", in.UserAgent())

	// transformed output still round-trips through the codec
	again, err := record.Parse(record.Serialize(out))
	require.NoError(t, err)
	require.True(t, out.Equal(again))
}

func TestTransformer_ApplyRejectsEmptyFields(t *testing.T) {
	t.Parallel()
	r := record.MustNew("10.0.0.1", time.Now(), "GET", "/", 200, 1, "ua")

	_, err := transform.NewTransformer().Apply(r.WithClientAddress(""))
	te, ok := transform.AsTransformError(err)
	require.True(t, ok)
	require.Equal(t, "clientAddress", te.Field)

	_, err = transform.NewTransformer().Apply(r.WithUserAgent(""))
	te, ok = transform.AsTransformError(err)
	require.True(t, ok)
	require.Equal(t, "userAgent", te.Field)
}

func TestTransformer_CustomAnonymizer(t *testing.T) {
	t.Parallel()
	r := record.MustNew("10.0.0.1", time.Now(), "GET", "/", 200, 1, chromeUA)

	tr := transform.NewTransformer(transform.WithAnonymizer(func(string) string { return "x" }))
	out, err := tr.Apply(r)
	require.NoError(t, err)
	require.Equal(t, "x", out.ClientAddress())
	require.Equal(t, "CHROME", out.UserAgent())
}

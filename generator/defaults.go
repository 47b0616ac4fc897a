package generator

// DefaultMaxBytes bounds the uniformly drawn response size, exclusive.
const DefaultMaxBytes = 10000

var DefaultMethods = MustDistribution(
	W("GET", 6),
	W("POST", 2),
	W("PUT", 1),
)

var DefaultResources = MustDistribution(
	W("/page1", 10),
	W("/page2", 9),
	W("/page3", 7),
	W("/page4", 3),
	W("/secretpage", 0.5),
)

var DefaultStatuses = MustDistribution(
	W(200, 8),
	W(404, 2),
	W(401, 0.5),
	W(403, 0.5),
)

var DefaultUserAgents = MustDistribution(
	W("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.87 Safari/537.36", 4.7),
	W("Mozilla/5.0 (Windows NT 10.0; WOW64; rv:50.0) Gecko/20100101 Firefox/50.0", 3.8),
	W("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_1) AppleWebKit/602.2.14 (KHTML, like Gecko) Version/10.0.1 Safari/602.2.14", 2.5),
	W("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.95 Safari/537.36", 2.2),
	W("Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:50.0) Gecko/20100101 Firefox/50.0", 2.1),
)

var DefaultReferers = MustDistribution(
	W("http://www.example.com/", 5),
	W("http://www.example.org/search", 3),
	W("http://news.example.net/article", 2),
	W("http://blog.example.io/", 1),
	W("-", 2),
)

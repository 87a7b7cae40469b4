package semantic

import "regexp"

// xhttpPatterns are the five request-line accept regexes selectable
// via the xHTTP statement, each a cumulative superset of the one
// before it. Each matches the whole "METHOD path HTTP/1.x" request
// line, not just the method token.
var xhttpPatterns = [5]string{
	`^(GET|POST|HEAD) ([^ ]+) HTTP/1.[01]$`,
	`^(GET|POST|HEAD|PUT|PATCH|DELETE) ([^ ]+) HTTP/1.[01]$`,
	`^(GET|POST|HEAD|PUT|PATCH|DELETE|LOCK|UNLOCK|PROPFIND|PROPPATCH|SEARCH|MKCOL|MOVE|COPY|OPTIONS|TRACE|MKACTIVITY|CHECKOUT|MERGE|REPORT) ([^ ]+) HTTP/1.[01]$`,
	`^(GET|POST|HEAD|PUT|PATCH|DELETE|LOCK|UNLOCK|PROPFIND|PROPPATCH|SEARCH|MKCOL|MOVE|COPY|OPTIONS|TRACE|MKACTIVITY|CHECKOUT|MERGE|REPORT|SUBSCRIBE|UNSUBSCRIBE|BPROPPATCH|POLL|BMOVE|BCOPY|BDELETE|BPROPFIND|NOTIFY|CONNECT) ([^ ]+) HTTP/1.[01]$`,
	`^(GET|POST|HEAD|PUT|PATCH|DELETE|LOCK|UNLOCK|PROPFIND|PROPPATCH|SEARCH|MKCOL|MOVE|COPY|OPTIONS|TRACE|MKACTIVITY|CHECKOUT|MERGE|REPORT|SUBSCRIBE|UNSUBSCRIBE|BPROPPATCH|POLL|BMOVE|BCOPY|BDELETE|BPROPFIND|NOTIFY|CONNECT|RPC_IN_DATA|RPC_OUT_DATA) ([^ ]+) HTTP/1.[01]$`,
}

// xhttpCompiled caches the method-set regex for each index, compiled
// case-insensitive the same way the session and URL matchers are.
var xhttpCompiled [5]*regexp.Regexp

func init() {
	for i, pat := range xhttpPatterns {
		xhttpCompiled[i] = regexp.MustCompile("(?i)" + pat)
	}
}

// XHTTPRegex returns the compiled method-set regex for idx, clamping
// to the valid 0..4 range the xHTTP statement accepts.
func XHTTPRegex(idx int) *regexp.Regexp {
	if idx < 0 || idx >= len(xhttpCompiled) {
		idx = 0
	}
	return xhttpCompiled[idx]
}

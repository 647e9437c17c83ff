package forwarding

import "strings"

// RewritePath computes the backend path-and-query for a request whose path
// is reqPathQuery, forwarded by a service whose endpoint prefix is
// fromPathQuery and whose backend base is toPathQuery (nil if the backend
// URI carries no path at all).
//
// fromPathQuery must already have its trailing slash stripped by the
// caller (NormalizeFrom below), except that "/" itself stays "/" before
// normalization and becomes "" after.
func RewritePath(reqPathQuery, fromPathQuery string, toPathQuery *string) string {
	req := reqPathQuery
	if req == "" {
		req = "/"
	}

	rem := req
	if strings.HasPrefix(req, fromPathQuery) {
		rem = req[len(fromPathQuery):]
	}

	// is_root only flags a meaningful match: the endpoint prefix must have
	// actually consumed something down to a bare "/". A root endpoint
	// ("from" = "/", fromPathQuery == "") never sets it, since there is
	// nothing to strip in the first place.
	isRoot := fromPathQuery != "" && rem == "/"
	rem = strings.TrimPrefix(rem, "/")

	if toPathQuery == nil {
		if rem == "" {
			return "/"
		}
		return rem
	}

	to := *toPathQuery
	switch {
	case rem == "":
		if isRoot && !strings.HasSuffix(to, "/") {
			return to + "/"
		}
		return to
	case strings.HasSuffix(to, "/"):
		return to + rem
	case isRoot:
		return to + "/"
	default:
		return to + "/" + rem
	}
}

// NormalizeFrom strips a trailing "/" from a from-URI's path-and-query,
// except that "/" alone becomes "".
func NormalizeFrom(fromPathQuery string) string {
	if fromPathQuery == "/" {
		return ""
	}
	return strings.TrimSuffix(fromPathQuery, "/")
}

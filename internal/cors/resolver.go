package cors

import "strings"

// Resolver selects a CORS policy by request path. Paths under the admin
// prefix resolve to the Admin policy; everything else resolves to Public.
type Resolver struct {
	adminPrefix string
	admin       *Policy
	public      *Policy
}

// NewResolver creates a resolver. An empty adminPrefix defaults to
// "/api/admin".
func NewResolver(adminPrefix string, public, admin *Policy) *Resolver {
	if adminPrefix == "" {
		adminPrefix = "/api/admin"
	}
	return &Resolver{
		adminPrefix: adminPrefix,
		admin:       admin,
		public:      public,
	}
}

// Resolve returns the policy for the given request path. Selection is
// deterministic: the path prefix alone decides, never the origin.
func (r *Resolver) Resolve(path string) *Policy {
	if strings.HasPrefix(path, r.adminPrefix) {
		return r.admin
	}
	return r.public
}

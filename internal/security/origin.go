package security

// OriginPolicy decides whether a browser Origin header is acceptable
// for the WebSocket endpoint.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from an allow-list. An empty list
// allows any origin, which is only appropriate outside production.
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{}
	if len(origins) > 0 {
		p.allowed = make(map[string]struct{}, len(origins))
		for _, o := range origins {
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether the given Origin header value passes the
// policy. With a non-empty allow-list a missing origin is rejected.
func (p *OriginPolicy) Allowed(origin string) bool {
	if p.allowed == nil {
		return true
	}
	if origin == "" {
		return false
	}
	_, ok := p.allowed[origin]
	return ok
}

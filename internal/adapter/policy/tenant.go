package policy

import "github.com/palisade-sh/palisade/internal/core/domain"

// StaticTenantProvider resolves the tenant from the request context,
// falling back to the deployment-wide tenant ID.
type StaticTenantProvider struct {
	defaultTenant string
}

func NewStaticTenantProvider(defaultTenant string) *StaticTenantProvider {
	if defaultTenant == "" {
		defaultTenant = "default"
	}
	return &StaticTenantProvider{defaultTenant: defaultTenant}
}

func (p *StaticTenantProvider) TenantID(reqCtx domain.RequestContext) string {
	if reqCtx.TenantID != "" {
		return reqCtx.TenantID
	}
	return p.defaultTenant
}

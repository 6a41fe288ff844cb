package rbac

// RolePermissions is the default policy. Catalog writes are granted to
// every user unless the server is started with CATALOG_ADMIN_ONLY, in which
// case the router additionally requires catalog:write.
var RolePermissions = map[string][]string{
	"user": {
		"test:take",
		"analytics:view-own",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}

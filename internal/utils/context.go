package utils

import "context"

type contextKey string

const (
	AdminSubjectKey contextKey = "admin_subject"
	AdminRoleKey    contextKey = "admin_role"
)

// SetAdminContext stores the authenticated admin (called by middleware)
func SetAdminContext(ctx context.Context, subject, role string) context.Context {
	ctx = context.WithValue(ctx, AdminSubjectKey, subject)
	ctx = context.WithValue(ctx, AdminRoleKey, role)
	return ctx
}

func GetAdminFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(AdminSubjectKey).(string)
	return s, ok && s != ""
}

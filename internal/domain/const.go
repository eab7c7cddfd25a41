package domain

type ctxKey string

const (
	RequesterIdCtxKey   ctxKey = "gl-requesterId"
	RequesterTypeCtxKey ctxKey = "gl-requesterType"
)

const (
	Unknown = iota
	LocalUser
	Admin
)

func RequesterTypeString(t int) string {
	switch t {
	case LocalUser:
		return "LocalUser"
	case Admin:
		return "Admin"
	case Unknown:
		return "Unknown"
	default:
		return "Error"
	}
}

const (
	ActionVerify  = "verify"
	ActionRestore = "restore"
)

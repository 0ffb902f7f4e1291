package auth

type Permission string

const (
	PermTables      Permission = "tables"
	PermPayments    Permission = "payments"
	PermRatesSelect Permission = "rates_select"
	PermRatesManage Permission = "rates_manage"
	PermLayout      Permission = "layout"
)

var roleGrants = map[TerminalRole][]Permission{
	RoleServer:  {PermTables, PermPayments, PermRatesSelect},
	RoleManager: {PermTables, PermPayments, PermRatesSelect, PermRatesManage, PermLayout},
}

func Allows(role TerminalRole, perm Permission) bool {
	for _, p := range roleGrants[role] {
		if p == perm {
			return true
		}
	}
	return false
}

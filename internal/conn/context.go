// Package conn classifies WebSocket handshakes into typed connection
// contexts: who is on the socket, with which role, in which scope.
package conn

// Role is the privilege level of a connection within a tournament scope.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RolePlayer    Role = "player"
	RoleViewer    Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer:    0,
	RolePlayer:    1,
	RoleOrganizer: 2,
}

// AtLeast reports whether r carries at least the privilege of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Identity is the sealed guest/authenticated split. A guest has no user and
// no way to hold a role above viewer; the nullable-field invariant of the old
// shape ("username nil iff userId nil") is gone by construction.
type Identity interface{ isIdentity() }

type Authenticated struct {
	UserID   string
	Username string
	Role     Role
}

// Guest carries only the observed peer address, for audit logging.
type Guest struct {
	IP string
}

func (Authenticated) isIdentity() {}
func (Guest) isIdentity()         {}

// Context is the sealed union over connection scope. It is built once per
// handshake and immutable for the life of the socket.
type Context interface {
	// Topic is the one broadcast channel this connection subscribes to.
	Topic() string
	// Role is the effective privilege of the connection.
	Role() Role
	isContext()
}

// Tournament is a connection scoped to a single tournament's dashboard.
type Tournament struct {
	TournamentID string
	Identity     Identity
}

// Global is a per-user notification connection.
type Global struct {
	UserID   string
	Username string
	Status   Role
}

func (Tournament) isContext() {}
func (Global) isContext()     {}

func (t Tournament) Topic() string { return "tournament:" + t.TournamentID }
func (g Global) Topic() string     { return "user:" + g.UserID }

func (t Tournament) Role() Role {
	if id, ok := t.Identity.(Authenticated); ok {
		return id.Role
	}
	return RoleViewer
}

func (g Global) Role() Role { return g.Status }

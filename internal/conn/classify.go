package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/chesstour/live-backend/internal/token"
)

var ErrUnauthorized = errors.New("conn: unknown or expired session")
var ErrBadRequest = errors.New("conn: malformed handshake")

// Session is what a Directory resolves an opaque session id to.
type Session struct {
	UserID   string
	Username string
}

var ErrSessionNotFound = errors.New("conn: session not found")
var ErrNotAMember = errors.New("conn: user is not a tournament member")

// Directory is the slice of the Store the classifier needs.
type Directory interface {
	LookupSession(ctx context.Context, sessionID string) (Session, error)
	LookupRole(ctx context.Context, userID, tournamentID string) (Role, error)
}

// Handshake carries the upgrade request metadata the classifier reads.
type Handshake struct {
	// Token is the encrypted session token from the requested subprotocol,
	// empty when the client offered none.
	Token string
	// ConnectionType is the connectionType query parameter.
	ConnectionType string
	// TournamentID is the tournamentId query parameter.
	TournamentID string
	// AuditIP is the client-supplied ip query parameter. Logged only, never
	// trusted for authorization.
	AuditIP string
	// RemoteAddr is the observed peer address.
	RemoteAddr string
}

const (
	connectionTournament = "tournament"
	connectionGlobal     = "global"
)

// Classifier turns handshake metadata into a Context. It reads the Directory
// and nothing else; subscribing happens after classification succeeds.
type Classifier struct {
	codec   *token.Codec
	dir     Directory
	timeout time.Duration
}

func NewClassifier(codec *token.Codec, dir Directory, timeout time.Duration) *Classifier {
	return &Classifier{codec: codec, dir: dir, timeout: timeout}
}

// Classify resolves h into a Context or a handshake rejection. Rejections are
// token.ErrInvalidToken, ErrUnauthorized or ErrBadRequest; the caller must not
// accept the socket on any of them.
//
// Global connections always classify with status player: an explicit status
// query parameter is ignored, since global connections are receive-only and
// honoring it would let a client self-assign a role string.
func (c *Classifier) Classify(ctx context.Context, h Handshake) (Context, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if h.Token == "" {
		// Guests exist only on the tournament scope and are always viewers.
		if h.ConnectionType != connectionTournament {
			return nil, fmt.Errorf("%w: missing session token", ErrBadRequest)
		}
		if h.TournamentID == "" {
			return nil, fmt.Errorf("%w: missing tournamentId", ErrBadRequest)
		}
		return Tournament{
			TournamentID: h.TournamentID,
			Identity:     Guest{IP: peerIP(h.RemoteAddr)},
		}, nil
	}

	sessionID, err := c.codec.Decrypt(h.Token)
	if err != nil {
		return nil, err
	}
	sess, err := c.dir.LookupSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("conn: session lookup: %w", err)
	}

	switch h.ConnectionType {
	case connectionTournament:
		if h.TournamentID == "" {
			return nil, fmt.Errorf("%w: missing tournamentId", ErrBadRequest)
		}
		role, err := c.dir.LookupRole(ctx, sess.UserID, h.TournamentID)
		if err != nil {
			if errors.Is(err, ErrNotAMember) {
				// Authenticated spectators watch like guests do.
				role = RoleViewer
			} else {
				return nil, fmt.Errorf("conn: role lookup: %w", err)
			}
		}
		return Tournament{
			TournamentID: h.TournamentID,
			Identity: Authenticated{
				UserID:   sess.UserID,
				Username: sess.Username,
				Role:     role,
			},
		}, nil

	case connectionGlobal:
		if sess.UserID == "" {
			return nil, fmt.Errorf("%w: session resolves no user", ErrBadRequest)
		}
		return Global{
			UserID:   sess.UserID,
			Username: sess.Username,
			Status:   RolePlayer,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown connectionType %q", ErrBadRequest, h.ConnectionType)
}

func peerIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

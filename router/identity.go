package router

import (
	"github.com/wtfashwin/Quiz-App/room"
	"github.com/wtfashwin/Quiz-App/session"
)

// claim checks the identity an event claims to act for. An authenticated
// session may only act as itself; an empty claim defaults to it. Without
// authentication the claim is taken at face value unless auth is required.
func (r *Router) claim(sess *session.Session, claimed string) (string, error) {
	id, ok := sess.Identity()
	if ok {
		if claimed != "" && claimed != id.UserID {
			return "", room.Errorf(room.CodeUnauthorized, "cannot act as %s", claimed)
		}
		return id.UserID, nil
	}

	if r.opts.AuthRequired {
		return "", room.Errorf(room.CodeUnauthorized, "authenticate first")
	}
	if claimed == "" {
		return "", room.Errorf(room.CodeBadRequest, "player id is required")
	}
	return claimed, nil
}

// displayName picks the name to show for playerID.
func displayName(sess *session.Session, playerID, requested string) string {
	if id, ok := sess.Identity(); ok && id.UserID == playerID && id.Name != "" {
		return id.Name
	}
	if requested != "" {
		return requested
	}
	return playerID
}

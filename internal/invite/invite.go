// Package invite builds and parses room invite links.
//
// The canonical form is a deep link:
//
//	hang://join?room=<id>&code=<passcode>&file=<name>&server=<ws url>
//
// Web links served by the relay (https://host/join/<id>?code=...) are
// accepted by Parse as well.
package invite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const Scheme = "hang"

var ErrInvalidInvite = errors.New("invalid invite link")

type Invite struct {
	RoomID   string
	Passcode string
	FileName string
	Server   string
}

func (i Invite) URL() string {
	q := url.Values{}
	q.Set("room", i.RoomID)
	if i.Passcode != "" {
		q.Set("code", i.Passcode)
	}
	if i.FileName != "" {
		q.Set("file", i.FileName)
	}
	if i.Server != "" {
		q.Set("server", i.Server)
	}
	u := url.URL{Scheme: Scheme, Host: "join", RawQuery: q.Encode()}
	return u.String()
}

// WebURL is the browser-friendly link for a relay reachable at base.
func (i Invite) WebURL(base string) string {
	u := strings.TrimRight(base, "/") + "/join/" + url.PathEscape(i.RoomID)
	if i.Passcode != "" {
		u += "?code=" + url.QueryEscape(i.Passcode)
	}
	return u
}

func Parse(raw string) (Invite, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Invite{}, fmt.Errorf("%w: %w", ErrInvalidInvite, err)
	}
	q := u.Query()

	var inv Invite
	switch u.Scheme {
	case Scheme:
		if u.Host != "join" {
			return Invite{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInvite, u.Host)
		}
		inv = Invite{
			RoomID:   q.Get("room"),
			Passcode: q.Get("code"),
			FileName: q.Get("file"),
			Server:   q.Get("server"),
		}
	case "http", "https":
		id, ok := strings.CutPrefix(u.Path, "/join/")
		if !ok {
			return Invite{}, fmt.Errorf("%w: not a join link", ErrInvalidInvite)
		}
		inv = Invite{RoomID: id, Passcode: q.Get("code"), FileName: q.Get("file")}
	default:
		return Invite{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInvite, u.Scheme)
	}

	inv.RoomID = strings.Trim(inv.RoomID, "/ ")
	if inv.RoomID == "" {
		return Invite{}, fmt.Errorf("%w: missing room", ErrInvalidInvite)
	}
	return inv, nil
}

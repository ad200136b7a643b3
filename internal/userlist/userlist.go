// Package userlist implements an ordered, case-insensitive set of users,
// each carrying a prefix-mode vector, wrapping internal/cmap keyed by the
// server's mapped nick. A Server's ignore list reuses the same type keyed
// by ignore pattern rather than channel membership.
//
// Grounded on original_source/src/components/user.h's user_list_add/
// user_list_del/user_list_rpl/user_list_get quartet.
package userlist

import (
	"github.com/rirc-go/rirc/internal/cmap"
	"github.com/rirc-go/rirc/internal/mode"
)

// User is one channel member.
type User struct {
	Nick        string
	PrefixModes mode.Vector
}

// List is an ordered set of Users, case-folded by the server's active
// casemap.Mapping.
type List struct {
	tree *cmap.Tree[*User]
}

// New returns an empty List that orders and compares nicks by fold.
func New(fold func(string) string) *List {
	return &List{tree: cmap.New[*User](fold)}
}

// Len returns the number of members currently in the list.
func (l *List) Len() int {
	return l.tree.Len()
}

// Add inserts a new member. It returns cmap.Duplicate without modifying the
// list if a user with the same folded nick already exists.
func (l *List) Add(nick string, modes mode.Vector) cmap.Result {
	return l.tree.Insert(nick, &User{Nick: nick, PrefixModes: modes})
}

// Del removes the member with the given nick. It returns cmap.NotFound
// without modifying the list if no such member exists.
func (l *List) Del(nick string) cmap.Result {
	return l.tree.Delete(nick)
}

// Get returns a member whose folded nick begins with the given folded
// prefix, or nil if no member's does. As in original_source's
// user_list_get, when several members share the prefix the one returned is
// the first met on the AVL walk (see cmap.Tree.GetPrefix); even a full nick
// can return another member whose nick it is a prefix of.
func (l *List) Get(prefix string) *User {
	_, u, ok := l.tree.GetPrefix(prefix)
	if !ok {
		return nil
	}
	return u
}

// Replace renames old to new, preserving old's prefix-mode vector. It is
// del-then-add but atomic for the caller: if new already exists (add fails
// with cmap.Duplicate), old is reinserted unchanged and Replace reports
// cmap.Duplicate. If old does not exist, Replace reports cmap.NotFound and
// the list is unchanged.
func (l *List) Replace(old, new string) cmap.Result {
	u, ok := l.tree.Get(old)
	if !ok {
		return cmap.NotFound
	}
	if res := l.tree.Delete(old); res != cmap.OK {
		return res
	}
	u.Nick = new
	if res := l.tree.Insert(new, u); res != cmap.OK {
		u.Nick = old
		l.tree.Insert(old, u)
		return res
	}
	return cmap.OK
}

// Entries returns every member in ascending folded-nick order.
func (l *List) Entries() []*User {
	entries := l.tree.Entries()
	out := make([]*User, len(entries))
	for i, e := range entries {
		out[i] = e.Val
	}
	return out
}

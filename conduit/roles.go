package conduit

import (
	"bytes"
	"sort"
	"sync"

	"github.com/badgerodon/collections/set"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

type Role string

const (
	Admin     Role = "admin"
	Pusher    Role = "pusher"
	Operator  Role = "operator"
	Whitelist Role = "whitelist"
)

// RoleSet is a set of principals holding one role. The zero address is the wildcard:
// once inserted, every principal is a member.
type RoleSet struct {
	lock    sync.RWMutex
	role    Role
	members *set.Set
}

func NewRoleSet(role Role, members ...solana.PublicKey) *RoleSet {
	rs := &RoleSet{
		role:    role,
		members: set.New(),
	}
	for _, m := range members {
		rs.members.Insert(m)
	}
	return rs
}

func (rs *RoleSet) Role() Role {
	return rs.role
}

// Has reports exact membership, ignoring the wildcard.
func (rs *RoleSet) Has(who solana.PublicKey) bool {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	return rs.members.Has(who)
}

func (rs *RoleSet) Contains(who solana.PublicKey) bool {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	return rs.members.Has(who) || rs.members.Has(program.Anyone)
}

func (rs *RoleSet) Len() int {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	return rs.members.Len()
}

// Members returns the principals in byte order.
func (rs *RoleSet) Members() []solana.PublicKey {
	rs.lock.RLock()
	members := make([]solana.PublicKey, 0, rs.members.Len())
	rs.members.Do(func(m interface{}) {
		members = append(members, m.(solana.PublicKey))
	})
	rs.lock.RUnlock()
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i][:], members[j][:]) < 0
	})
	return members
}

// Insert adds who and reports whether the set changed.
func (rs *RoleSet) Insert(who solana.PublicKey) bool {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if rs.members.Has(who) {
		return false
	}
	rs.members.Insert(who)
	return true
}

// Remove drops who and reports whether the set changed.
func (rs *RoleSet) Remove(who solana.PublicKey) bool {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if !rs.members.Has(who) {
		return false
	}
	rs.members.Remove(who)
	return true
}

// Roles is the registry of role sets a conduit supports. The admin set is always present.
type Roles struct {
	sets map[Role]*RoleSet
}

func NewRoles(roles ...Role) *Roles {
	r := &Roles{
		sets: map[Role]*RoleSet{Admin: NewRoleSet(Admin)},
	}
	for _, role := range roles {
		if _, ok := r.sets[role]; !ok {
			r.sets[role] = NewRoleSet(role)
		}
	}
	return r
}

// Set returns nil for a role the conduit does not support.
func (r *Roles) Set(role Role) *RoleSet {
	return r.sets[role]
}

func (r *Roles) Supports(role Role) bool {
	_, ok := r.sets[role]
	return ok
}

func (r *Roles) Contains(role Role, who solana.PublicKey) bool {
	rs := r.sets[role]
	return rs != nil && rs.Contains(who)
}

func (r *Roles) Members(role Role) []solana.PublicKey {
	rs := r.sets[role]
	if rs == nil {
		return nil
	}
	return rs.Members()
}

var (
	grantKind = map[Role]EventKind{
		Admin:     EventRely,
		Pusher:    EventMate,
		Operator:  EventHope,
		Whitelist: EventKiss,
	}
	revokeKind = map[Role]EventKind{
		Admin:     EventDeny,
		Pusher:    EventHate,
		Operator:  EventNope,
		Whitelist: EventDiss,
	}
)

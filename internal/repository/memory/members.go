package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/CartBot/internal/models"
)

type memberRepository struct {
	view
}

func countMembers(st *state, groupID string, role models.Role) int {
	n := 0
	for k, m := range st.members {
		if k.groupID == groupID && (role == "" || m.value.Role == role) {
			n++
		}
	}
	return n
}

func (r memberRepository) Add(_ context.Context, member *models.GroupMember) (*models.GroupMember, error) {
	err := r.run(func(st *state) error {
		if _, ok := st.groups[member.GroupID]; !ok {
			return notFound("group %s", member.GroupID)
		}
		if _, ok := st.users[member.UserID]; !ok {
			return notFound("user %s", member.UserID)
		}
		key := memberKey{groupID: member.GroupID, userID: member.UserID}
		if _, ok := st.members[key]; ok {
			return duplicate("member %s of group %s", member.UserID, member.GroupID)
		}
		if member.ID == "" {
			member.ID = uuid.NewString()
		}
		member.JoinedAt = time.Now()
		stored := *member
		stored.User = nil
		st.members[key] = row[models.GroupMember]{value: stored, seq: st.next()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (r memberRepository) Get(_ context.Context, groupID, userID string) (*models.GroupMember, error) {
	var member *models.GroupMember
	err := r.run(func(st *state) error {
		if m, ok := st.members[memberKey{groupID: groupID, userID: userID}]; ok {
			v := m.value
			member = &v
		}
		return nil
	})
	return member, err
}

func (r memberRepository) List(_ context.Context, groupID string) ([]*models.GroupMember, error) {
	var members []*models.GroupMember
	err := r.run(func(st *state) error {
		var rows []row[models.GroupMember]
		for k, m := range st.members {
			if k.groupID == groupID {
				rows = append(rows, m)
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
		for _, m := range rows {
			v := m.value
			if u, ok := st.users[v.UserID]; ok {
				v.User = copyUser(u.value)
			}
			members = append(members, &v)
		}
		return nil
	})
	return members, err
}

func (r memberRepository) UpdateRole(_ context.Context, groupID, userID string, role models.Role) error {
	return r.run(func(st *state) error {
		key := memberKey{groupID: groupID, userID: userID}
		m, ok := st.members[key]
		if !ok {
			return notFound("member %s", userID)
		}
		m.value.Role = role
		st.members[key] = m
		return nil
	})
}

func (r memberRepository) Remove(_ context.Context, groupID, userID string) error {
	return r.run(func(st *state) error {
		key := memberKey{groupID: groupID, userID: userID}
		if _, ok := st.members[key]; !ok {
			return notFound("member %s", userID)
		}
		delete(st.members, key)
		return nil
	})
}

func (r memberRepository) Count(_ context.Context, groupID string) (int, error) {
	var n int
	err := r.run(func(st *state) error {
		n = countMembers(st, groupID, "")
		return nil
	})
	return n, err
}

func (r memberRepository) CountAdmins(_ context.Context, groupID string) (int, error) {
	var n int
	err := r.run(func(st *state) error {
		n = countMembers(st, groupID, models.RoleAdmin)
		return nil
	})
	return n, err
}

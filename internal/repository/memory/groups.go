package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/CartBot/internal/models"
)

type groupRepository struct {
	view
}

func copyGroup(g models.Group) *models.Group {
	if g.Description != nil {
		d := *g.Description
		g.Description = &d
	}
	return &g
}

func inviteCodeTaken(st *state, code, exceptID string) bool {
	for id, g := range st.groups {
		if id != exceptID && g.value.InviteCode == code {
			return true
		}
	}
	return false
}

func (r groupRepository) Create(_ context.Context, group *models.Group) (*models.Group, error) {
	err := r.run(func(st *state) error {
		if group.ID == "" {
			group.ID = uuid.NewString()
		}
		if _, ok := st.groups[group.ID]; ok {
			return duplicate("group %s", group.ID)
		}
		if inviteCodeTaken(st, group.InviteCode, "") {
			return duplicate("invite code %s", group.InviteCode)
		}
		now := time.Now()
		group.CreatedAt = now
		group.UpdatedAt = now
		st.groups[group.ID] = row[models.Group]{value: *copyGroup(*group), seq: st.next()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (r groupRepository) GetByID(_ context.Context, id string) (*models.Group, error) {
	var group *models.Group
	err := r.run(func(st *state) error {
		if g, ok := st.groups[id]; ok {
			group = copyGroup(g.value)
		}
		return nil
	})
	return group, err
}

func (r groupRepository) GetForUpdate(ctx context.Context, id string) (*models.Group, error) {
	return r.GetByID(ctx, id)
}

func (r groupRepository) GetByInviteCode(_ context.Context, code string) (*models.Group, error) {
	var group *models.Group
	err := r.run(func(st *state) error {
		for _, g := range st.groups {
			if g.value.InviteCode == code {
				group = copyGroup(g.value)
				return nil
			}
		}
		return nil
	})
	return group, err
}

func (r groupRepository) InviteCodeExists(_ context.Context, code string) (bool, error) {
	var exists bool
	err := r.run(func(st *state) error {
		exists = inviteCodeTaken(st, code, "")
		return nil
	})
	return exists, err
}

func (r groupRepository) Update(_ context.Context, group *models.Group) (*models.Group, error) {
	err := r.run(func(st *state) error {
		existing, ok := st.groups[group.ID]
		if !ok {
			return notFound("group %s", group.ID)
		}
		updated := copyGroup(existing.value)
		updated.Name = group.Name
		updated.Description = copyGroup(*group).Description
		updated.UpdatedAt = time.Now()
		group.UpdatedAt = updated.UpdatedAt
		existing.value = *updated
		st.groups[group.ID] = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (r groupRepository) SetInviteCode(_ context.Context, groupID, code string) error {
	return r.run(func(st *state) error {
		existing, ok := st.groups[groupID]
		if !ok {
			return notFound("group %s", groupID)
		}
		if inviteCodeTaken(st, code, groupID) {
			return duplicate("invite code %s", code)
		}
		existing.value.InviteCode = code
		existing.value.UpdatedAt = time.Now()
		st.groups[groupID] = existing
		return nil
	})
}

// Delete removes the group together with its members and items, and clears
// any personal group reference to it.
func (r groupRepository) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.groups[id]; !ok {
			return notFound("group %s", id)
		}
		delete(st.groups, id)
		for k := range st.members {
			if k.groupID == id {
				delete(st.members, k)
			}
		}
		for k, item := range st.items {
			if item.value.GroupID == id {
				delete(st.items, k)
			}
		}
		for k, u := range st.users {
			if u.value.PersonalGroupID != nil && *u.value.PersonalGroupID == id {
				u.value.PersonalGroupID = nil
				st.users[k] = u
			}
		}
		return nil
	})
}

func (r groupRepository) ListByUser(_ context.Context, userID string) ([]*models.GroupSummary, error) {
	var summaries []*models.GroupSummary
	err := r.run(func(st *state) error {
		type ranked struct {
			summary *models.GroupSummary
			seq     uint64
		}
		var rows []ranked
		for k, m := range st.members {
			if k.userID != userID {
				continue
			}
			g, ok := st.groups[k.groupID]
			if !ok {
				continue
			}
			rows = append(rows, ranked{
				summary: &models.GroupSummary{
					Group:       *copyGroup(g.value),
					Role:        m.value.Role,
					MemberCount: countMembers(st, k.groupID, ""),
					ItemCount:   countItems(st, k.groupID),
				},
				seq: g.seq,
			})
		}
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			if a.summary.IsPersonal != b.summary.IsPersonal {
				return a.summary.IsPersonal
			}
			return a.seq > b.seq
		})
		for _, rk := range rows {
			summaries = append(summaries, rk.summary)
		}
		return nil
	})
	return summaries, err
}

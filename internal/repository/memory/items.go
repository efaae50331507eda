package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/CartBot/internal/models"
)

type itemRepository struct {
	view
}

func countItems(st *state, groupID string) int {
	n := 0
	for _, item := range st.items {
		if item.value.GroupID == groupID {
			n++
		}
	}
	return n
}

// checkAmount mirrors the amount check constraint.
func checkAmount(item *models.ShoppingListItem) error {
	if item.Amount < 1 || item.Amount > models.MaxItemAmount {
		return constraint("item %q amount %d", item.Name, item.Amount)
	}
	return nil
}

// nameTaken mirrors the unique index on (group_id, lower(name)).
func nameTaken(st *state, groupID, name, exceptID string) bool {
	for id, item := range st.items {
		if id != exceptID && item.value.GroupID == groupID && strings.EqualFold(item.value.Name, name) {
			return true
		}
	}
	return false
}

func (r itemRepository) Create(_ context.Context, item *models.ShoppingListItem) (*models.ShoppingListItem, error) {
	err := r.run(func(st *state) error {
		if _, ok := st.groups[item.GroupID]; !ok {
			return notFound("group %s", item.GroupID)
		}
		if err := checkAmount(item); err != nil {
			return err
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if nameTaken(st, item.GroupID, item.Name, "") {
			return duplicate("item %q", item.Name)
		}
		now := time.Now()
		item.CreatedAt = now
		item.UpdatedAt = now
		st.items[item.ID] = row[models.ShoppingListItem]{value: *item, seq: st.next()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r itemRepository) GetByID(_ context.Context, id string) (*models.ShoppingListItem, error) {
	var item *models.ShoppingListItem
	err := r.run(func(st *state) error {
		if it, ok := st.items[id]; ok {
			v := it.value
			item = &v
		}
		return nil
	})
	return item, err
}

func (r itemRepository) GetForUpdate(ctx context.Context, id string) (*models.ShoppingListItem, error) {
	return r.GetByID(ctx, id)
}

func (r itemRepository) FindByName(_ context.Context, groupID, name string) (*models.ShoppingListItem, error) {
	var item *models.ShoppingListItem
	err := r.run(func(st *state) error {
		for _, it := range st.items {
			if it.value.GroupID == groupID && strings.EqualFold(it.value.Name, name) {
				v := it.value
				item = &v
				return nil
			}
		}
		return nil
	})
	return item, err
}

func (r itemRepository) list(match func(models.ShoppingListItem) bool, newestFirst bool) ([]*models.ShoppingListItem, error) {
	var items []*models.ShoppingListItem
	err := r.run(func(st *state) error {
		var rows []row[models.ShoppingListItem]
		for _, it := range st.items {
			if match(it.value) {
				rows = append(rows, it)
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			if newestFirst {
				return rows[i].seq > rows[j].seq
			}
			return rows[i].seq < rows[j].seq
		})
		for _, it := range rows {
			v := it.value
			items = append(items, &v)
		}
		return nil
	})
	return items, err
}

func (r itemRepository) ListByGroup(_ context.Context, groupID string) ([]*models.ShoppingListItem, error) {
	return r.list(func(item models.ShoppingListItem) bool {
		return item.GroupID == groupID
	}, true)
}

func (r itemRepository) ListByCreator(_ context.Context, groupID, createdByID string) ([]*models.ShoppingListItem, error) {
	return r.list(func(item models.ShoppingListItem) bool {
		return item.GroupID == groupID && item.CreatedByID == createdByID
	}, false)
}

// Update keeps the item's position in its new group: a moved item is ordered
// by when it was created, as in PostgreSQL.
func (r itemRepository) Update(_ context.Context, item *models.ShoppingListItem) (*models.ShoppingListItem, error) {
	err := r.run(func(st *state) error {
		existing, ok := st.items[item.ID]
		if !ok {
			return notFound("item %s", item.ID)
		}
		if _, ok := st.groups[item.GroupID]; !ok {
			return notFound("group %s", item.GroupID)
		}
		if err := checkAmount(item); err != nil {
			return err
		}
		if nameTaken(st, item.GroupID, item.Name, item.ID) {
			return duplicate("item %q", item.Name)
		}
		item.CreatedAt = existing.value.CreatedAt
		item.CreatedByID = existing.value.CreatedByID
		item.UpdatedAt = time.Now()
		existing.value = *item
		st.items[item.ID] = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r itemRepository) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.items[id]; !ok {
			return notFound("item %s", id)
		}
		delete(st.items, id)
		return nil
	})
}

func (r itemRepository) DeleteCompleted(_ context.Context, groupID string) (int64, error) {
	var n int64
	err := r.run(func(st *state) error {
		for id, item := range st.items {
			if item.value.GroupID == groupID && item.value.IsCompleted {
				delete(st.items, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r itemRepository) Count(_ context.Context, groupID string) (int, error) {
	var n int
	err := r.run(func(st *state) error {
		n = countItems(st, groupID)
		return nil
	})
	return n, err
}

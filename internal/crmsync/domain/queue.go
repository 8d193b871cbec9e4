package domain

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/crmfeed/internal/feed/identity"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
)

// ProjectSet collects project ids in first-seen order. It is owned by a
// single request and is not safe for concurrent use.
type ProjectSet struct {
	ids  []int64
	seen map[int64]struct{}
}

func NewProjectSet() *ProjectSet {
	return &ProjectSet{seen: make(map[int64]struct{})}
}

func (s *ProjectSet) Add(projectID int64) {
	if _, ok := s.seen[projectID]; ok {
		return
	}
	s.seen[projectID] = struct{}{}
	s.ids = append(s.ids, projectID)
}

// QueueOrders adds the project of every order except drafts, which may
// still change customer.
func (s *ProjectSet) QueueOrders(orders []orderdomain.ProjectRef) error {
	for _, order := range orders {
		if order.IsDraft() {
			continue
		}
		projectID, err := identity.OrderProjectID(order.OrderID, order.CustomerID)
		if err != nil {
			return err
		}
		s.Add(projectID)
	}
	return nil
}

func (s *ProjectSet) IDs() []int64 {
	return append([]int64(nil), s.ids...)
}

func (s *ProjectSet) Len() int {
	return len(s.ids)
}

// String renders the set in feed query form, e.g. "7,50000012".
func (s *ProjectSet) String() string {
	return JoinIDs(s.ids)
}

func JoinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

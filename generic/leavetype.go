package generic

import (
	"context"
	"fmt"
	"strings"
)

// LeaveTypeService administers the leave-type registry. Codes are immutable;
// saving an existing code only relabels it.
type LeaveTypeService struct {
	Store TxStore
}

func NewLeaveTypeService(store TxStore) *LeaveTypeService {
	return &LeaveTypeService{Store: store}
}

func (s *LeaveTypeService) Save(ctx context.Context, lt LeaveType) (LeaveType, error) {
	lt.Code = strings.TrimSpace(lt.Code)
	if lt.Code == "" {
		return LeaveType{}, &FieldError{Field: "code", Reason: "is required"}
	}
	if len(lt.Code) > MaxLeaveTypeCodeLen {
		return LeaveType{}, &FieldError{Field: "code", Reason: fmt.Sprintf("must be at most %d characters", MaxLeaveTypeCodeLen)}
	}
	if lt.Label == "" {
		lt.Label = lt.Code
	}
	if err := s.Store.SaveLeaveType(ctx, lt); err != nil {
		return LeaveType{}, err
	}
	return lt, nil
}

func (s *LeaveTypeService) Get(ctx context.Context, code string) (LeaveType, error) {
	return s.Store.GetLeaveType(ctx, code)
}

func (s *LeaveTypeService) List(ctx context.Context) ([]LeaveType, error) {
	return s.Store.ListLeaveTypes(ctx)
}

// Delete refuses to remove a code still referenced by an account.
func (s *LeaveTypeService) Delete(ctx context.Context, code string) (bool, error) {
	var deleted bool
	err := s.Store.WithTx(ctx, func(st Store) error {
		n, err := st.CountAccountsByLeaveType(ctx, code)
		if err != nil {
			return err
		}
		if n > 0 {
			return &PreconditionError{Reason: fmt.Sprintf("leave type %q is used by %d account(s)", code, n)}
		}
		deleted, err = st.DeleteLeaveType(ctx, code)
		return err
	})
	return deleted, err
}

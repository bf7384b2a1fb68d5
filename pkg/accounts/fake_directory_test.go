package accounts

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
)

// fakeDirectory pages through an in-memory user list. Page tokens are offsets.
type fakeDirectory struct {
	mu        sync.Mutex
	users     []AuthUser
	listCalls int
	listErr   error
	deleteErr error
}

func newFakeDirectory(users ...AuthUser) *fakeDirectory {
	return &fakeDirectory{users: users}
}

func (d *fakeDirectory) ListUsers(_ context.Context, pageSize int, pageToken string) ([]AuthUser, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listCalls++
	if d.listErr != nil {
		return nil, "", d.listErr
	}
	offset := 0
	if pageToken != "" {
		var err error
		if offset, err = strconv.Atoi(pageToken); err != nil {
			return nil, "", errors.New("bad page token")
		}
	}
	if offset > len(d.users) {
		offset = len(d.users)
	}
	end := offset + pageSize
	if end >= len(d.users) {
		return append([]AuthUser(nil), d.users[offset:]...), "", nil
	}
	return append([]AuthUser(nil), d.users[offset:end]...), strconv.Itoa(end), nil
}

// DeleteUsers removes users without shifting offsets of later pages
func (d *fakeDirectory) DeleteUsers(_ context.Context, uids []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.deleteErr != nil {
		return 0, d.deleteErr
	}
	deleted := 0
	for i := range d.users {
		for _, uid := range uids {
			if d.users[i].UID == uid {
				d.users[i].UID = ""
				deleted++
			}
		}
	}
	return deleted, nil
}

func (d *fakeDirectory) remaining() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var uids []string
	for _, u := range d.users {
		if u.UID != "" {
			uids = append(uids, u.UID)
		}
	}
	sort.Strings(uids)
	return uids
}

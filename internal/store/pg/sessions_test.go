package pg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"taskfold.org/internal/auth"
	"taskfold.org/internal/session"
)

func TestSessionPutAndGet(t *testing.T) {
	store, mock := newMockStore(t)

	payload := session.Payload{
		Profile:     auth.Profile{AccountID: "acct-1", Email: "maya@example.com"},
		Permissions: auth.NewPermissionSet(auth.PermProjectsView),
		CSRFToken:   "csrf-token",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		ExpiresAt:   time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}

	mock.ExpectExec("insert into sessions(.+)on conflict \\(key_hash\\) do update").
		WithArgs("key-hash", "acct-1", sqlmock.AnyArg(), payload.CreatedAt, payload.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Put(context.Background(), "key-hash", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	mock.ExpectQuery("select payload from sessions where key_hash = \\$1 and expires_at > now\\(\\)").
		WithArgs("key-hash").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(data))

	got, err := store.Get(context.Background(), "key-hash")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile.AccountID != "acct-1" || got.CSRFToken != "csrf-token" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !got.Permissions.Has(auth.PermProjectsView) {
		t.Fatal("permission snapshot lost in storage round trip")
	}
}

func TestSessionGetMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select payload from sessions").
		WithArgs("key-hash").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	if _, err := store.Get(context.Background(), "key-hash"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("got %v, want session.ErrNotFound", err)
	}
}

func TestSessionGetCorruptPayload(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select payload from sessions").
		WithArgs("key-hash").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{not json")))

	if _, err := store.Get(context.Background(), "key-hash"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("got %v, want session.ErrNotFound", err)
	}
}

func TestSessionDelete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from sessions where key_hash = \\$1").
		WithArgs("key-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "key-hash"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	mock.ExpectExec("delete from sessions where key_hash = \\$1").
		WithArgs("key-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "key-hash"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("got %v, want session.ErrNotFound", err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectExec("delete from sessions where expires_at < \\$1").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := store.PurgeExpiredSessions(context.Background(), now); err != nil {
		t.Fatalf("PurgeExpiredSessions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package hooks

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	apperrors "hookbin/internal/pkg/errors"
)

func TestRepositoriesMapDriverFailuresToStorageErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	driverErr := errors.New("disk I/O error")

	t.Run("webhook page", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM webhooks").WillReturnError(driverErr)

		_, err := NewWebhookRepository(db).FindPage(1, 0, 10)
		if !errors.Is(err, apperrors.ErrStorage) {
			t.Errorf("expected storage error, got %v", err)
		}
	})

	t.Run("forward batch", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM forwards").WillReturnError(driverErr)

		_, err := NewForwardRepository(db).FindByKeys([]string{"1"})
		if !errors.Is(err, apperrors.ErrStorage) {
			t.Errorf("expected storage error, got %v", err)
		}
	})

	t.Run("endpoint membership", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").WillReturnError(driverErr)

		_, err := NewEndpointRepository(db).IsEndpointUser(1, 1)
		if !errors.Is(err, apperrors.ErrStorage) {
			t.Errorf("expected storage error, got %v", err)
		}
	})

	t.Run("endpoint create rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO endpoints").WillReturnError(driverErr)
		mock.ExpectRollback()

		err := NewEndpointRepository(db).Create(&Endpoint{Name: "inbox"}, 1)
		if !errors.Is(err, apperrors.ErrStorage) {
			t.Errorf("expected storage error, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

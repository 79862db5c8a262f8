package scouts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, scout *models.Scout) (*models.Scout, error)
	findByIDFn    func(ctx context.Context, id uuid.UUID) (*models.Scout, error)
	findByNameFn  func(ctx context.Context, name string) (*models.Scout, error)
	listFn        func(ctx context.Context, opts listQuery) ([]models.Scout, error)
	updateFn      func(ctx context.Context, scout *models.Scout) error
	deleteFn      func(ctx context.Context, id uuid.UUID) error
	countBlocksFn func(ctx context.Context, scoutID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, scout *models.Scout) (*models.Scout, error) {
	if f.createFn != nil {
		return f.createFn(ctx, scout)
	}
	return scout, nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByNameInsensitive(ctx context.Context, name string) (*models.Scout, error) {
	if f.findByNameFn != nil {
		return f.findByNameFn(ctx, name)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) List(ctx context.Context, opts listQuery) ([]models.Scout, error) {
	if f.listFn != nil {
		return f.listFn(ctx, opts)
	}
	return nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, scout *models.Scout) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, scout)
	}
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeRepository) CountBlocks(ctx context.Context, scoutID uuid.UUID) (int64, error) {
	if f.countBlocksFn != nil {
		return f.countBlocksFn(ctx, scoutID)
	}
	return 0, nil
}

func codeOf(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return appErr.Code()
}

func TestCreateScout(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	section := enums.SectionPioneiros
	created, err := svc.CreateScout(context.Background(), CreateScoutInput{
		Name:    "  Maria Santos ",
		Section: &section,
	})
	if err != nil {
		t.Fatalf("CreateScout error: %v", err)
	}
	if created.Name != "Maria Santos" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if !created.Active {
		t.Fatal("expected scout to default to active")
	}
}

func TestCreateScoutDuplicateNameCaseInsensitive(t *testing.T) {
	existing := &models.Scout{ID: uuid.New(), Name: "Maria Santos"}
	var lookedUp string
	repo := &fakeRepository{
		findByNameFn: func(ctx context.Context, name string) (*models.Scout, error) {
			lookedUp = name
			return existing, nil
		},
	}
	svc, _ := NewService(repo)

	_, err := svc.CreateScout(context.Background(), CreateScoutInput{Name: "MARIA SANTOS"})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %s", got)
	}
	if lookedUp != "MARIA SANTOS" {
		t.Fatalf("expected name lookup, got %q", lookedUp)
	}
}

func TestCreateScoutInvalidSection(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	bad := enums.Section("castores")
	_, err := svc.CreateScout(context.Background(), CreateScoutInput{Name: "x", Section: &bad})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", got)
	}
}

func TestDeleteScoutBlockedByBlocks(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, got uuid.UUID) (*models.Scout, error) {
			return &models.Scout{ID: id, Name: "Maria"}, nil
		},
		countBlocksFn: func(ctx context.Context, scoutID uuid.UUID) (int64, error) {
			return 3, nil
		},
	}
	svc, _ := NewService(repo)

	err := svc.DeleteScout(context.Background(), id)
	if err == nil {
		t.Fatal("expected error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
	details, ok := appErr.Details().(map[string]int64)
	if !ok || details["blocks"] != 3 {
		t.Fatalf("expected dependent block count in details, got %v", appErr.Details())
	}
}

func TestDeleteScoutSucceedsWhenUnreferenced(t *testing.T) {
	id := uuid.New()
	var deleted bool
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, got uuid.UUID) (*models.Scout, error) {
			return &models.Scout{ID: id, Name: "Maria"}, nil
		},
		deleteFn: func(ctx context.Context, got uuid.UUID) error {
			deleted = true
			return nil
		},
	}
	svc, _ := NewService(repo)

	if err := svc.DeleteScout(context.Background(), id); err != nil {
		t.Fatalf("DeleteScout error: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to run")
	}
}

package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("patch config: %w", Forbidden("path %q is not editable", "channels"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("expected forbidden kind")
	}
	if errors.Is(err, ErrInvalid) {
		t.Fatal("unexpected invalid kind")
	}
	if err.Error() != `patch config: path "channels" is not editable` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

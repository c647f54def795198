package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"goea/domain/core"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown term", core.NewUnknownTermError("GO:1"), CodeNotFound},
		{"missing run", fmt.Errorf("load: %w", core.NewRunNotFoundError("x")), CodeNotFound},
		{"input", core.NewInputError("study", "empty"), CodeInvalidInput},
		{"parse", &core.ParseError{Stanza: 1, Reason: "missing id"}, CodeParseError},
		{"disagreement", &core.NumericDisagreementError{}, CodeNumericDisagreement},
		{"app error", DatabaseError("insert run", stderrors.New("locked")), CodeDatabaseError},
		{"plain", stderrors.New("boom"), CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeFor(tt.err))
		})
	}
}

func TestWrapKeepsChain(t *testing.T) {
	base := core.NewInputError("study", "empty")
	err := Wrapf(base, "run %d", 3)

	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.ErrorIs(t, err, core.ErrInput)
	assert.Equal(t, "run 3: invalid input: study: empty", err.Error())
	assert.Nil(t, Wrap(nil, "x"))

	coded := WithCode(CodeConfigInvalid, err)
	assert.Equal(t, CodeConfigInvalid, GetCode(coded))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidInput))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeParseError))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeDatabaseError))
}

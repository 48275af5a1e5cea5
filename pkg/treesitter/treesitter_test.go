package treesitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package store

// OrdersDB persists orders.
type OrdersDB struct {
	conn string
}

func NewOrdersDB() *OrdersDB { return &OrdersDB{} }

func (d *OrdersDB) Save(userID string) error { return nil }
`

func TestIdentifiers(t *testing.T) {
	p := NewParser()
	defer p.Close()

	idents, err := p.Identifiers(context.Background(), []byte(goSource), "go")
	require.NoError(t, err)

	assert.Contains(t, idents, "OrdersDB")
	assert.Contains(t, idents, "userID")
	assert.Contains(t, idents, "Save")
}

func TestDeclarationsGo(t *testing.T) {
	p := NewParser()
	defer p.Close()

	decls, err := p.Declarations(context.Background(), []byte(goSource), "go")
	require.NoError(t, err)
	require.Len(t, decls, 3)

	assert.Equal(t, "type", decls[0].Kind)
	assert.Equal(t, "OrdersDB", decls[0].Name)
	assert.Equal(t, "function", decls[1].Kind)
	assert.Equal(t, "NewOrdersDB", decls[1].Name)
	assert.Equal(t, "method", decls[2].Kind)
	assert.Equal(t, "Save", decls[2].Name)
	assert.Equal(t, 10, decls[2].StartLine)
}

func TestDeclarationsPython(t *testing.T) {
	p := NewParser()
	defer p.Close()

	src := "class UserService:\n    pass\n\ndef handle(req):\n    return req\n"
	decls, err := p.Declarations(context.Background(), []byte(src), "python")
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "UserService", decls[0].Name)
	assert.Equal(t, "handle", decls[1].Name)
}

func TestParseUnsupportedLanguage(t *testing.T) {
	p := NewParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("x"), "cobol")
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "go", DetectLanguage("cmd/main.go", []byte("package main")))
	assert.Equal(t, "python", DetectLanguage("app.py", []byte("print(1)")))
	assert.True(t, Supported("kotlin"))
	assert.False(t, Supported("cobol"))
}

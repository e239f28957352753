// Package repository implements data access for shops, their change history
// and user accounts. Sentinel errors let handlers map failure modes onto
// HTTP statuses without string matching.
package repository

import "errors"

// ErrShopNotFound is returned when a shop id does not exist. Handlers
// translate this into a 404.
var ErrShopNotFound = errors.New("shop not found")

// ErrFieldNotEditable is returned when a patch names a column editors may
// not write (derived columns, unknown columns). Handlers translate this
// into a 400.
var ErrFieldNotEditable = errors.New("field not editable")

// ErrUsernameExists is returned when registering a username that is already
// taken. Handlers translate this into a 409.
var ErrUsernameExists = errors.New("username already exists")

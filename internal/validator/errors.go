// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package validator

import "errors"

// ErrMissingOption indicates a required Options field is empty
var ErrMissingOption = errors.New("validator option required")

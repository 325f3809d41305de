/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// Session is the server-side record of a focus session start. One record per
// (pledge, owner); starting again overwrites it.
type Session struct {
	PledgeID  string `cbor:"1,keyasint"`
	Owner     string `cbor:"2,keyasint"`
	StartTime int64  `cbor:"3,keyasint"`
	CreatedAt int64  `cbor:"4,keyasint"`
}

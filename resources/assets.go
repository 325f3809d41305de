/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package resources

import (
	_ "embed"
)

var (
	// LockdABI is the JSON ABI of the pledge ledger contract.
	//go:embed lockd_abi.json
	LockdABI []byte

	//go:embed schemas/attest_request.schema.json
	AttestRequestSchema []byte

	//go:embed schemas/session_start_request.schema.json
	SessionStartRequestSchema []byte
)

/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"os"

	"github.com/lockd/attestor/cmd"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

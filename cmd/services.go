// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"os/exec"
)

// controlServices are the services that own the SPI buses while the
// controller runs normally. They must be stopped before flashing and
// brought back afterwards.
var controlServices = []string{"nodered", "go-simulink"}

// stopServices stops the control services and returns a function that
// restarts the ones that were actually running. Services that are not
// installed or already stopped are skipped.
func stopServices() func() {
	var stopped []string
	for _, name := range controlServices {
		if exec.Command("systemctl", "is-active", "--quiet", name).Run() != nil {
			continue
		}
		if err := exec.Command("systemctl", "stop", name).Run(); err != nil {
			log.Warnf("could not stop %s: %v", name, err)
			continue
		}
		log.Debugf("stopped %s", name)
		stopped = append(stopped, name)
	}
	return func() {
		for _, name := range stopped {
			if err := exec.Command("systemctl", "start", name).Run(); err != nil {
				log.Warnf("could not restart %s: %v", name, err)
			} else {
				log.Debugf("restarted %s", name)
			}
		}
	}
}

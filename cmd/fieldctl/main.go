// Command fieldctl is the operator tool for the field job backend: schema
// migrations, job listing, order status and job status repair.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("fieldctl failed")
		os.Exit(1)
	}
}

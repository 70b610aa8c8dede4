package housekeeper

import (
	"github.com/spf13/cobra"

	"github.com/openshop/identity/internal/business"
	"github.com/openshop/identity/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"housekeeper",
		"Identity housekeeping job",
		"Identity housekeeping job removes sign-in attempts that were never completed",
		buildInfo,
		cmdutils.RunAsWorker,
		business.HousekeeperMain,
	)
}

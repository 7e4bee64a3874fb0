package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paulsmith/jjq/internal/doctor"
	"github.com/paulsmith/jjq/internal/jjqerr"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report OK/WARN/FAIL across jjq's health checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			reports := a.Doctor.Run(a.checkContext(ctx))
			printDoctorReports(cmd, reports)
			if doctor.WorstStatus(reports) == doctor.StatusFail {
				return jjqerr.New(jjqerr.Conflict, "doctor found failing checks")
			}
			return nil
		},
	}
}

func printDoctorReports(cmd *cobra.Command, reports []doctor.Report) {
	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(out, "%-7s %-22s %s\n", r.Result.Status, r.Name, r.Result.Message)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mobile-home-delivery/internal/gateway/api"
)

func addLocationFlags(f *pflag.FlagSet) {
	f.Float64("lat", 0, "latitude of the current fix")
	f.Float64("lon", 0, "longitude of the current fix")
	f.Float64("accuracy", 0, "accuracy of the current fix in meters")
}

// locationFrom returns nil unless both coordinates were given.
func locationFrom(cmd *cobra.Command, v *viper.Viper) *api.Location {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
		return nil
	}
	return &api.Location{
		Latitude:  v.GetFloat64("lat"),
		Longitude: v.GetFloat64("lon"),
		Accuracy:  v.GetFloat64("accuracy"),
	}
}

// describeRejection prints what the server needs before it will accept the request.
func describeRejection(w io.Writer, err error) {
	var se *api.StatusError
	if !errors.As(err, &se) || !api.IsRejected(err) {
		return
	}
	fmt.Fprintf(w, "rejected: %s\n", se.Reason)
	if se.Required > 0 {
		fmt.Fprintf(w, "  photos: %d of %d\n", se.Current, se.Required)
	}
	if len(se.Missing) > 0 {
		fmt.Fprintf(w, "  missing: %s\n", strings.Join(se.Missing, ", "))
	}
}

func newTransitionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transition <status>",
		Short: "Move a delivery to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, args[0])
		},
	}
	f := cmd.Flags()
	f.Int64("delivery", 0, "delivery id")
	f.String("note", "", "free-text note stored in the history")
	f.Int64("expected-version", -1, "reject if the delivery version differs (-1 disables)")
	addLocationFlags(f)
	return cmd
}

func runTransition(cmd *cobra.Command, status string) error {
	v, err := loadViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	id, err := deliveryID(v)
	if err != nil {
		return err
	}

	req := api.TransitionRequest{
		DeliveryID: id,
		Status:     strings.TrimSpace(status),
		Location:   locationFrom(cmd, v),
		Note:       v.GetString("note"),
	}
	if ev := v.GetInt64("expected-version"); ev >= 0 {
		req.ExpectedVersion = &ev
	}

	resp, err := commandAPI(cmd, cfg).Transition(cmd.Context(), req)
	if err != nil {
		describeRejection(cmd.ErrOrStderr(), err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "delivery %d is now %s (version %d)\n",
		resp.Delivery.ID, resp.Delivery.Status, resp.Delivery.Version)
	return nil
}

func newPhotoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo <category> <file>",
		Short: "Upload a delivery photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhoto(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.Int64("delivery", 0, "delivery id")
	f.String("caption", "", "photo caption")
	addLocationFlags(f)
	return cmd
}

func runPhoto(cmd *cobra.Command, category, path string) error {
	v, err := loadViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	id, err := deliveryID(v)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	resp, err := commandAPI(cmd, cfg).UploadPhoto(cmd.Context(), api.PhotoUpload{
		DeliveryID: id,
		Category:   category,
		Caption:    v.GetString("caption"),
		FileName:   filepath.Base(path),
		Data:       data,
		TakenAt:    time.Now().UTC(),
		Location:   locationFrom(cmd, v),
	})
	if err != nil {
		describeRejection(cmd.ErrOrStderr(), err)
		return err
	}

	out := cmd.OutOrStdout()
	p := resp.Photo
	fmt.Fprintf(out, "stored %s photo %s (%d -> %d bytes, ratio %.2f)\n",
		p.Category, p.URL, p.OriginalSize, p.OptimizedSize, p.CompressionRatio)
	if len(resp.Missing) == 0 {
		fmt.Fprintln(out, "photo requirements for this phase are met")
	} else {
		fmt.Fprintf(out, "still missing: %s\n", strings.Join(resp.Missing, ", "))
	}
	return nil
}

func newQualityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Show the quality report for a delivery",
		Args:  cobra.NoArgs,
		RunE:  runQuality,
	}
	cmd.Flags().Int64("delivery", 0, "delivery id")
	return cmd
}

func runQuality(cmd *cobra.Command, _ []string) error {
	v, err := loadViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	id, err := deliveryID(v)
	if err != nil {
		return err
	}

	report, err := commandAPI(cmd, cfg).Quality(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verdict := "not ready"
	if report.Ready {
		verdict = "ready"
	}
	fmt.Fprintf(out, "delivery %d phase %s score %d (%s)\n", report.DeliveryID, report.Phase, report.Score, verdict)
	for _, r := range report.Results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  [%s] %-10s %-8s %s\n", mark, r.Check, r.Severity, r.Message)
	}
	return nil
}

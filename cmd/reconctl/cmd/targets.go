package cmd

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

type target struct {
	ID              int       `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	Domain          string    `json:"domain"`
	Subdomains      int       `json:"subdomains_count"`
	OpenPorts       int       `json:"open_ports_count"`
	Vulnerabilities int       `json:"vulnerabilities_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type targetList struct {
	Data  []target `json:"data"`
	Total int64    `json:"total"`
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage scan targets",
}

var targetsCreateCmd = &cobra.Command{
	Use:   "create DOMAIN",
	Short: "Register a target domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagOrgID == "" {
			return fmt.Errorf("organization required: set --org or RECONFORGE_ORG_ID")
		}
		body := map[string]any{
			"organization_id": flagOrgID,
			"domain":          args[0],
		}
		var tgt target
		if err := newClient().post("/api/v1/targets", body, &tgt); err != nil {
			return err
		}
		return printTarget(cmd, tgt)
	},
}

var targetsGetCmd = &cobra.Command{
	Use:   "get TARGET_ID",
	Short: "Show a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tgt target
		if err := newClient().get("/api/v1/targets/"+args[0], nil, &tgt); err != nil {
			return err
		}
		return printTarget(cmd, tgt)
	},
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if flagOrgID != "" {
			query.Set("organization_id", flagOrgID)
		}

		var list targetList
		if err := newClient().get("/api/v1/targets", query, &list); err != nil {
			return err
		}

		if flagOutput == "json" {
			return printJSON(cmd, list)
		}
		tw := newTabWriter(cmd)
		fmt.Fprintln(tw, "ID\tDOMAIN\tSUBDOMAINS\tOPEN PORTS\tVULNS\tCREATED")
		for _, tgt := range list.Data {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n",
				tgt.ID, tgt.Domain, tgt.Subdomains, tgt.OpenPorts,
				tgt.Vulnerabilities, tgt.CreatedAt.Local().Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

func printTarget(cmd *cobra.Command, tgt target) error {
	if flagOutput == "json" {
		return printJSON(cmd, tgt)
	}
	cmd.Printf("ID:               %d\n", tgt.ID)
	cmd.Printf("Domain:           %s\n", tgt.Domain)
	cmd.Printf("Organization:     %s\n", tgt.OrganizationID)
	cmd.Printf("Subdomains:       %d\n", tgt.Subdomains)
	cmd.Printf("Open ports:       %d\n", tgt.OpenPorts)
	cmd.Printf("Vulnerabilities:  %d\n", tgt.Vulnerabilities)
	return nil
}

func init() {
	targetsCmd.AddCommand(targetsCreateCmd)
	targetsCmd.AddCommand(targetsGetCmd)
	targetsCmd.AddCommand(targetsListCmd)
}

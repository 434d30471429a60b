package switcher

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/common-fate/ssoswitch/pkg/catalog"
)

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	var data [][]string
	for _, p := range cat.Profiles() {
		data = append(data, []string{p.Name, p.SSORoleName, p.SSOAccountID, p.Region, p.SSOStartURL})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PROFILE", "ROLE", "ACCOUNT", "REGION", "START URL"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(data)
	table.Render()
}

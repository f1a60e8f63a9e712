package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List comics in the download directory",
	Long:  "Display every comic with a metadata record in the download directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		comics, err := a.Store.List()
		if err != nil {
			return err
		}
		if len(comics) == 0 {
			fmt.Printf("No comics in %s.\n", a.Settings.DownloadDir)
			return nil
		}

		columns := []table.Column{
			{Title: "Title", Width: 40},
			{Title: "Status", Width: 12},
			{Title: "Chapters", Width: 10},
			{Title: "Downloaded", Width: 12},
		}
		rows := make([]table.Row, 0, len(comics))
		for _, c := range comics {
			done, total := c.DownloadedCount()
			rows = append(rows, table.Row{
				truncate(c.Title, 38),
				c.Status,
				strconv.Itoa(total),
				strconv.Itoa(done),
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)
		s := table.DefaultStyles()
		s.Header = s.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		s.Selected = s.Selected.UnsetForeground().UnsetBackground().Bold(false)
		t.SetStyles(s)

		fmt.Printf("\nLibrary (%d comics)\n\n", len(comics))
		fmt.Println(t.View())
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

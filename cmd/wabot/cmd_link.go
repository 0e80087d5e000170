package main

import (
	"github.com/spf13/cobra"

	"github.com/wabot-dev/wabot/pkg/transport/wameow"
)

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a WhatsApp device for the native transport (QR pairing)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			mode := "terminal"
			if png, _ := cmd.Flags().GetBool("png"); png {
				mode = "png"
			}
			return wameow.Link(cmd.Context(), cfg.Transport.Wameow.DBPath, mode)
		},
	}
	cmd.Flags().Bool("png", false, "Write the QR code to a PNG file instead of the terminal")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a WhatsApp device is linked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return wameow.Status(cmd.Context(), cfg.Transport.Wameow.DBPath)
		},
	}
}

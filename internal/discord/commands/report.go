package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/orderbot/internal/discord"
	"github.com/MrWong99/orderbot/internal/ordering"
	"github.com/MrWong99/orderbot/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportCommands implements /report, which uploads the order and action
// log workbooks. Only staff may use it.
type ReportCommands struct {
	svc   *ordering.Service
	perms *discord.PermissionChecker
	log   *slog.Logger
	now   func() time.Time
}

// NewReportCommands creates a ReportCommands.
func NewReportCommands(svc *ordering.Service, perms *discord.PermissionChecker, log *slog.Logger) *ReportCommands {
	if log == nil {
		log = slog.Default()
	}
	return &ReportCommands{svc: svc, perms: perms, log: log, now: time.Now}
}

// Register adds /report to the router.
func (rc *ReportCommands) Register(router *discord.CommandRouter) {
	minDays := 1.0
	router.RegisterCommand("report", &discordgo.ApplicationCommand{
		Name:        "report",
		Description: "Выгрузить отчёты по заказам (xlsx)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "days",
				Description: "За сколько последних дней (по умолчанию за всё время)",
				MinValue:    &minDays,
			},
		},
	}, rc.handleReport)
}

func (rc *ReportCommands) handleReport(m discord.Messenger, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || !rc.perms.IsStaff(i) {
		discord.RespondEphemeral(m, i, textStaffOnly)
		return
	}

	var r store.Range
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "days" {
			if days := opt.IntValue(); days > 0 {
				r.From = rc.now().AddDate(0, 0, -int(days))
			}
		}
	}

	discord.DeferReply(m, i)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reports, err := rc.svc.Reports(ctx, r)
	if err != nil {
		rc.log.Error("discord: report generation failed", "err", err)
		discord.FollowUp(m, i, textReportsFailed)
		return
	}

	files := make([]*discordgo.File, 0, len(reports))
	for _, rep := range reports {
		files = append(files, &discordgo.File{
			Name:        rep.Filename,
			ContentType: xlsxContentType,
			Reader:      rep.Data,
		})
	}
	discord.FollowUpFiles(m, i, "📊 Отчёты:", files)
}

// Package report renders stored orders and the action log as xlsx workbooks.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MrWong99/orderbot/internal/order"
	"github.com/MrWong99/orderbot/internal/store"
)

// File names used when the workbooks are sent to chat.
const (
	OrdersFilename  = "report.xlsx"
	ActionsFilename = "log_report.xlsx"
)

// Sheet names.
const (
	SheetAll      = "Все заказы"
	SheetCash     = "Наличные заказы"
	SheetCashless = "Безналичные заказы"
	SheetByItem   = "Группировка по названию"
	SheetActions  = "Журнал действий"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	orderHeader   = []string{"Дата", "Заказ №", "Пользователь", "Позиция", "Добавки", "Цена", "Оплата", "Сотрудник"}
	byItemHeader  = []string{"Позиция", "Количество", "Сумма"}
	actionsHeader = []string{"Время", "Действие", "Заказ №", "Оплата", "Позиция", "ID пользователя", "Пользователь"}
)

// Source provides the report data. [store.Store] implements it.
type Source interface {
	Orders(ctx context.Context, r store.Range) ([]store.Order, error)
	Actions(ctx context.Context, r store.Range) ([]store.Action, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithLocation sets the time zone timestamps are rendered in. Default: local.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) { g.loc = loc }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// Generator builds report workbooks.
type Generator struct {
	src Source
	loc *time.Location
	log *slog.Logger
}

// New creates a Generator.
func New(src Source, opts ...Option) *Generator {
	g := &Generator{src: src, loc: time.Local}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Orders renders the orders workbook for r: every item, cash items,
// cashless items and item counts.
func (g *Generator) Orders(ctx context.Context, r store.Range) (*bytes.Buffer, error) {
	orders, err := g.src.Orders(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("report: load orders: %w", err)
	}

	var all, cash, cashless [][]any
	for _, o := range orders {
		for _, it := range o.Items {
			row := g.orderRow(o, it)
			all = append(all, row)
			switch o.Payment {
			case order.PaymentCash:
				cash = append(cash, row)
			case order.PaymentCashless:
				cashless = append(cashless, row)
			}
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAll); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	sheets := []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{SheetAll, orderHeader, all},
		{SheetCash, orderHeader, cash},
		{SheetCashless, orderHeader, cashless},
		{SheetByItem, byItemHeader, groupByItem(orders)},
	}
	for _, s := range sheets {
		if err := writeTable(f, s.name, s.header, s.rows); err != nil {
			return nil, fmt.Errorf("report: sheet %s: %w", s.name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: write orders: %w", err)
	}
	g.log.Info("orders report generated", "orders", len(orders), "items", len(all), "bytes", buf.Len())
	return buf, nil
}

// Actions renders the action log workbook for r.
func (g *Generator) Actions(ctx context.Context, r store.Range) (*bytes.Buffer, error) {
	actions, err := g.src.Actions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("report: load actions: %w", err)
	}

	rows := make([][]any, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []any{
			a.At.In(g.loc).Format(timeLayout),
			a.Kind.Label(),
			a.OrderID,
			a.Payment.Label(),
			a.ItemName,
			a.UserID,
			a.UserName,
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetActions); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if err := writeTable(f, SheetActions, actionsHeader, rows); err != nil {
		return nil, fmt.Errorf("report: sheet %s: %w", SheetActions, err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: write actions: %w", err)
	}
	g.log.Info("action log report generated", "actions", len(actions), "bytes", buf.Len())
	return buf, nil
}

func (g *Generator) orderRow(o store.Order, it store.Item) []any {
	addons := make([]string, len(it.Addons))
	for i, a := range it.Addons {
		addons[i] = a.Name
	}
	staff := "нет"
	if it.IsStaff {
		staff = "да"
	}
	return []any{
		o.CreatedAt.In(g.loc).Format(timeLayout),
		o.ID,
		o.UserName,
		it.Name,
		strings.Join(addons, ", "),
		it.Price,
		o.Payment.Label(),
		staff,
	}
}

// groupByItem counts items by name, most ordered first.
func groupByItem(orders []store.Order) [][]any {
	type agg struct {
		name  string
		count int
		sum   int
	}
	byName := make(map[string]*agg)
	for _, o := range orders {
		for _, it := range o.Items {
			a := byName[it.Name]
			if a == nil {
				a = &agg{name: it.Name}
				byName[it.Name] = a
			}
			a.count += it.Quantity
			a.sum += it.Price
		}
	}

	list := make([]*agg, 0, len(byName))
	for _, a := range byName {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].name < list[j].name
	})

	rows := make([][]any, len(list))
	for i, a := range list {
		rows[i] = []any{a.name, a.count, a.sum}
	}
	return rows
}

// writeTable creates sheet when missing and writes a bold, frozen header
// followed by rows.
func writeTable(f *excelize.File, sheet string, header []string, rows [][]any) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

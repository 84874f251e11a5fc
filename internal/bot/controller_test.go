package bot

import (
	"context"
	"testing"

	"fin_chart_bot/internal/store"
	"fin_chart_bot/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChat int64 = 500
	testUser int64 = 77
)

func selection(data string) Event {
	return Event{Kind: EventSelection, ChatID: testChat, UserID: testUser, Data: data}
}

func TestStartSendsWelcomeMenu(t *testing.T) {
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	c := NewController(tm, &recordingRenderer{}, views, transport)

	require.NoError(t, c.HandleEvent(context.Background(), Event{Kind: EventCommand, ChatID: testChat, Command: CommandStart}))

	menu := transport.lastMenu()
	assert.Equal(t, textWelcome, menu.Text)
	assert.Equal(t, []Option{{Label: "Выбрать компанию", Data: "choose_company"}}, menu.Options)
}

func TestChooseCompanyListsFixtures(t *testing.T) {
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	c := NewController(tm, &recordingRenderer{}, views, transport)

	require.NoError(t, c.HandleEvent(context.Background(), selection("choose_company")))

	menu := transport.lastMenu()
	assert.Equal(t, textChooseCompany, menu.Text)
	assert.Equal(t, []Option{
		{Label: "Рога и копыта", Data: "company_Рога и копыта"},
		{Label: "Ромашки", Data: "company_Ромашки"},
		{Label: "Моя оборона", Data: "company_Моя оборона"},
	}, menu.Options)
}

func TestSelectCompanyThenMetricSendsChart(t *testing.T) {
	ctx := context.Background()
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	renderer := &recordingRenderer{}
	c := NewController(tm, renderer, views, transport)

	require.NoError(t, c.HandleEvent(ctx, selection("company_Ромашки")))
	menu := transport.lastMenu()
	assert.Equal(t, "Вы выбрали компанию: Ромашки. Теперь выберите тип данных:", menu.Text)
	assert.Equal(t, metricMenu, menu.Options)

	require.NoError(t, c.HandleEvent(ctx, selection("column_Расход")))

	require.Len(t, renderer.calls, 1)
	call := renderer.calls[0]
	assert.Equal(t, "Ромашки", call.Company)
	assert.Equal(t, "Расход", call.Metric)
	assert.True(t, call.Value.Valid)
	assert.Equal(t, 700000.0, call.Value.Float64())

	require.Len(t, transport.photos, 1)
	assert.Empty(t, transport.photos[0].Caption)

	got, ok, err := views.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.View{ChatID: testChat, MessageID: 101, Company: "Ромашки", Metric: "Расход"}, got)
}

func TestMetricWithoutCompanyAsksForCompany(t *testing.T) {
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	renderer := &recordingRenderer{}
	c := NewController(tm, renderer, views, transport)

	require.NoError(t, c.HandleEvent(context.Background(), selection("column_Доход")))

	assert.Equal(t, textNeedCompany, transport.lastMenu().Text)
	assert.Empty(t, renderer.calls)
	assert.Empty(t, transport.photos)
}

func TestSessionsArePerUser(t *testing.T) {
	ctx := context.Background()
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	c := NewController(tm, &recordingRenderer{}, views, transport)

	require.NoError(t, c.HandleEvent(ctx, selection("company_Ромашки")))

	other := selection("column_Доход")
	other.UserID = testUser + 1
	require.NoError(t, c.HandleEvent(ctx, other))
	assert.Equal(t, textNeedCompany, transport.lastMenu().Text)
}

func TestLookupErrorIsReportedInChat(t *testing.T) {
	ctx := context.Background()
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	c := NewController(tm, &recordingRenderer{}, views, transport)

	require.NoError(t, c.HandleEvent(ctx, selection("company_Несуществующая")))
	require.NoError(t, c.HandleEvent(ctx, selection("column_Доход")))

	menu := transport.lastMenu()
	assert.Contains(t, menu.Text, "Ошибка получения данных")
	assert.Contains(t, menu.Text, "Несуществующая")
	assert.Equal(t, chooseCompanyMenu, menu.Options)
	assert.Empty(t, transport.photos)

	_, ok, err := views.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownMetricIsReportedInChat(t *testing.T) {
	ctx := context.Background()
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	c := NewController(tm, &recordingRenderer{}, views, transport)

	require.NoError(t, c.HandleEvent(ctx, selection("company_Ромашки")))
	require.NoError(t, c.HandleEvent(ctx, selection("column_Выручка")))

	assert.Contains(t, transport.lastMenu().Text, "column 'Выручка' not found")
}

func TestUncalculatedFormulaGetsCaption(t *testing.T) {
	ctx := context.Background()
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	renderer := &recordingRenderer{}
	c := NewController(tm, renderer, views, transport)

	require.NoError(t, c.HandleEvent(ctx, selection("company_Рога и копыта")))
	require.NoError(t, c.HandleEvent(ctx, selection("column_"+table.MetricProfit)))

	require.Len(t, renderer.calls, 1)
	assert.False(t, renderer.calls[0].Value.Valid)
	require.Len(t, transport.photos, 1)
	assert.Equal(t, textValueMissing, transport.photos[0].Caption)
}

func TestCompanyNameWithUnderscore(t *testing.T) {
	tm, views, _ := newFixtures(t)
	transport := &fakeTransport{}
	c := NewController(tm, &recordingRenderer{}, views, transport)

	require.NoError(t, c.HandleEvent(context.Background(), selection("company_ООО_Вектор")))

	company, ok := c.sessions.Company(testUser)
	require.True(t, ok)
	assert.Equal(t, "ООО_Вектор", company)
}

func TestCompanyMenuSkipsEmptyNames(t *testing.T) {
	options := companyMenu([]string{"Альфа", "", "  ", "Гамма"})
	assert.Equal(t, []Option{
		{Label: "Альфа", Data: "company_Альфа"},
		{Label: "Гамма", Data: "company_Гамма"},
	}, options)
}

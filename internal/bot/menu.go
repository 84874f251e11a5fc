package bot

import (
	"strings"

	"fin_chart_bot/internal/table"
)

const (
	CommandStart = "start"

	dataChooseCompany = "choose_company"
	prefixCompany     = "company_"
	prefixColumn      = "column_"
)

const (
	textWelcome       = "Добро пожаловать! Выберите действие:"
	textChooseCompany = "Выберите компанию:"
	textNeedCompany   = "Сначала выберите компанию:"
	textNoCompanies   = "В таблице нет компаний."
	textValueMissing  = "Значение не рассчитано: ячейка пуста или содержит нерассчитанную формулу."
)

var chooseCompanyMenu = []Option{{Label: "Выбрать компанию", Data: dataChooseCompany}}

// metricMenu lists the metric columns; the tax button is labelled "Налоги".
var metricMenu = []Option{
	{Label: "Доход", Data: prefixColumn + table.MetricIncome},
	{Label: "Расход", Data: prefixColumn + table.MetricExpense},
	{Label: "Прибыль", Data: prefixColumn + table.MetricProfit},
	{Label: "Налоги", Data: prefixColumn + table.MetricTax},
}

func companyMenu(names []string) []Option {
	options := make([]Option, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		options = append(options, Option{Label: name, Data: prefixCompany + name})
	}
	return options
}

func textCompanyChosen(company string) string {
	return "Вы выбрали компанию: " + company + ". Теперь выберите тип данных:"
}

func textFetchFailed(err error) string {
	return "Ошибка получения данных: " + err.Error() + ". Пожалуйста, попробуйте снова."
}

func textRefreshFailed(err error) string {
	return "Ошибка обновления данных: " + err.Error() + ". Пожалуйста, проверьте данные и попробуйте снова."
}

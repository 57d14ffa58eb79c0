// Package cli реализует инструмент командной строки Flowline.
//
// CLI — клиентская утилита для взаимодействия с Flowline API.
// Работает через HTTP, не импортирует внутренние пакеты сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Flowline API. Инкапсулирует HTTP-запросы, парсинг
// ответов (DataResponse, ListResponse, ErrorResponse) и обработку
// ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	workflows, err := client.ListWorkflows()
//
// ## Output
//
// Форматирование вывода. Два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: flowline workflow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: list, show, start, fire, resume, stats
//   - instance: history
//   - reload
//
// Каждая группа создаётся через фабричную функцию (NewWorkflowCmd
// и т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli

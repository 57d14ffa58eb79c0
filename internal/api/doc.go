// Package api реализует HTTP API Flowline поверх net/http
// (ServeMux с method-паттернами Go 1.22).
//
// Маршруты живут в routes.go, обработчики сгруппированы по ресурсам
// (workflow_handler.go, instance_handler.go). Формат ответов единый:
// {"data": ...} для успеха, {"error": {code, message}} для ошибок.
package api

// Package steps определяет контракт обработчиков шагов и реестр,
// через который движок находит обработчик по stype или params.method.
//
// Встроенные задачи:
//   - start-sub-workflow — запуск другого workflow (subworkflow.go)
//   - file-uploader      — выгрузка payload в файл (uploader.go)
//
// Доменные обработчики регистрируются при старте процесса
// (cmd/flowline-server).
package steps

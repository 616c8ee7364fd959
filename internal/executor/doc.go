// Пакет executor содержит исполнителей узлов и их реестр.
//
// Движок разрешает тип каждого узла через Registry до начала
// выполнения: flow с незарегистрированным типом отклоняется целиком,
// не оставляя следов. Registry потокобезопасен, DefaultRegistry
// собирает стандартный набор.
//
// # Типы узлов
//
//   - trigger — входной узел, пропускает вход запуска дальше
//   - xml_parser, csv_parser — разбор форматов в map-структуры
//   - mapper — перенос значений по dot-path правилам
//   - validation — проверка данных по правилам, каналы valid/invalid
//   - conditional — вычисление условия, condition_met в Meta
//   - interface_source, interface_destination — вызовы внешних
//     интерфейсов через dispatch
//   - email — почтовое уведомление с плейсхолдерами
//   - code — известен, но отключён навсегда
//
// # Контракт исполнителя
//
// Execute получает вход предыдущего узла и статическую конфигурацию,
// возвращает Result с выходом, именованными каналами и служебными
// отметками. Ошибка означает провал узла; Result при ошибке может
// быть непустым — выполненные попытки вызовов и каналы сохраняются
// в записи трейса.
package executor
